package r5

// CodingMatchable is implemented by records that carry a coding list.
type CodingMatchable interface {
	Codings() []Coding
}

// Codings implements CodingMatchable.
func (c *CodeableConcept) Codings() []Coding {
	if c == nil {
		return nil
	}
	return c.Coding
}

// ContainsCoding reports whether any coding matches system and code.
// An empty system matches every system.
func ContainsCoding(m CodingMatchable, system, code string) bool {
	if m == nil {
		return false
	}
	for _, coding := range m.Codings() {
		if coding.Code == code && (system == "" || coding.System == system) {
			return true
		}
	}
	return false
}

// CodesIn returns the codes from the given system, in order.
func CodesIn(m CodingMatchable, system string) []string {
	if m == nil {
		return nil
	}
	var codes []string
	for _, coding := range m.Codings() {
		if coding.System == system {
			codes = append(codes, coding.Code)
		}
	}
	return codes
}

// FirstCode returns the first code from the given system, or "".
func FirstCode(m CodingMatchable, system string) string {
	if m == nil {
		return ""
	}
	if codes := CodesIn(m, system); len(codes) > 0 {
		return codes[0]
	}
	return ""
}
