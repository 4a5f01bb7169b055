package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drfirst/go-hfcore/internal/category"
	"github.com/drfirst/go-hfcore/internal/cohort"
	"github.com/drfirst/go-hfcore/internal/dosage"
	"github.com/drfirst/go-hfcore/internal/engine"
	"github.com/drfirst/go-hfcore/internal/keypoint"
	"github.com/drfirst/go-hfcore/internal/report"
)

func (a *app) engineConfig() engine.Config {
	return engine.Config{
		Unit:      a.cfg.Unit(),
		Languages: a.cfg.Languages,
	}
}

// doseOutput is printed by the dose command.
type doseOutput struct {
	Unit        string             `json:"unit"`
	CurrentDose []float64          `json:"currentDose"`
	Reference   []referenceDoseOut `json:"reference,omitempty"`
}

type referenceDoseOut struct {
	MedicationID string    `json:"medicationId"`
	MinimumDose  []float64 `json:"minimumDose,omitempty"`
	TargetDose   []float64 `json:"targetDose,omitempty"`
}

func doseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dose FILE",
		Short: "Sum the daily dose per ingredient over request/medication pairs",
		Long: "Reads a JSON array of {\"request\": MedicationRequest, \"medication\": Medication}\n" +
			"objects and prints the current daily dose per ingredient index together with\n" +
			"each medication's reference minimum and target daily doses.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var contexts []dosage.MedicationRequestContext
			if err := readJSON(args[0], &contexts); err != nil {
				return err
			}

			agg := dosage.NewAggregator(a.cfg.Unit(), a.logger, a.metrics)
			current, err := agg.CurrentDailyDose(cmd.Context(), contexts)
			if err != nil {
				return err
			}

			out := doseOutput{Unit: agg.Unit().Label(), CurrentDose: current}
			seen := make(map[string]bool)
			for _, c := range contexts {
				if c.Medication == nil || seen[c.Medication.ID] {
					continue
				}
				seen[c.Medication.ID] = true
				ref := referenceDoseOut{MedicationID: c.Medication.ID}
				ref.MinimumDose, _ = agg.MinimumDailyDose(c.Medication)
				ref.TargetDose, _ = agg.TargetDailyDose(c.Medication)
				if ref.MinimumDose != nil || ref.TargetDose != nil {
					out.Reference = append(out.Reference, ref)
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func keypointsCmd(a *app) *cobra.Command {
	var languages []string
	cmd := &cobra.Command{
		Use:   "keypoints MEDICATION SYMPTOM DIZZINESS WEIGHT",
		Short: "Print the key points for a category combination",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := category.Set{
				Medication: category.Medication(args[0]),
				Symptom:    category.Symptom(args[1]),
				Dizziness:  category.Dizziness(args[2]),
				Weight:     category.Weight(args[3]),
			}
			if err := set.Validate(); err != nil {
				return err
			}

			evaluator := engine.NewEvaluator(a.engineConfig(), nil, nil, a.logger, a.metrics)
			messages, ok := evaluator.KeyPoints(set, languages...)
			if !ok {
				return fmt.Errorf("no key points for %s", set)
			}
			for _, m := range messages {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&languages, "lang", nil, "Preferred languages, most preferred first (default from HFCORE_LANGUAGES)")
	return cmd
}

func coverageCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Report which category combinations have key points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cov := keypoint.Default().Coverage()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "authored: %d\n", len(cov.Authored))
			fmt.Fprintf(w, "unauthored: %d\n", len(cov.Unauthored))
			fmt.Fprintf(w, "total: %d\n", cov.Total())
			if list {
				for _, set := range cov.Unauthored {
					fmt.Fprintln(w, set)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List the unauthored combinations")
	return cmd
}

// evaluateResult is one line of the evaluate command's output.
type evaluateResult struct {
	PatientID string               `json:"patientId"`
	State     *engine.PatientState `json:"state,omitempty"`
	Error     string               `json:"error,omitempty"`
	Attempts  int                  `json:"attempts"`
}

type evaluateOutput struct {
	Summary cohort.Summary   `json:"summary"`
	Results []evaluateResult `json:"results"`
}

func evaluateCmd(a *app) *cobra.Command {
	var xlsxPath string
	cmd := &cobra.Command{
		Use:   "evaluate FILE",
		Short: "Evaluate patient bundles",
		Long: "Reads a JSON array of {\"patient\", \"medicationRequests\", \"categories\"} bundles\n" +
			"and evaluates every patient concurrently. Fails when any patient fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bundles []engine.Bundle
			if err := readJSON(args[0], &bundles); err != nil {
				return err
			}
			src, err := engine.NewMemorySource(bundles...)
			if err != nil {
				return err
			}

			cfg := cohort.DefaultConfig()
			cfg.Engine = a.engineConfig()
			cfg.Pool.Workers = a.cfg.Workers
			cfg.Pool.QueueSize = a.cfg.QueueSize

			runner, err := cohort.New(cfg, src, src, a.logger, a.metrics)
			if err != nil {
				return err
			}
			results, summary, err := runner.Run(cmd.Context(), src.PatientIDs())
			if err != nil {
				return err
			}

			out := evaluateOutput{Summary: summary, Results: make([]evaluateResult, len(results))}
			for i, r := range results {
				out.Results[i] = evaluateResult{PatientID: r.PatientID, State: r.State, Attempts: r.Attempts}
				if r.Err != nil {
					out.Results[i].Error = r.Err.Error()
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if xlsxPath != "" {
				if err := writeReport(xlsxPath, results); err != nil {
					return err
				}
			}
			if summary.Failed > 0 {
				a.logger.Warn("evaluations failed", zap.Int("failed", summary.Failed))
				return fmt.Errorf("%d of %d evaluations failed", summary.Failed, summary.Patients)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the results as an XLSX workbook to this path")
	return cmd
}

func writeReport(path string, results []cohort.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteXLSX(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
