package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/planwerk/planwerk/check"
	"github.com/planwerk/planwerk/confidence"
	"github.com/planwerk/planwerk/config"
	"github.com/planwerk/planwerk/coordination"
	"github.com/planwerk/planwerk/model"
)

// checkInput is the on-disk request format for a one-shot check.
type checkInput struct {
	Project   model.Project            `yaml:"project" json:"project"`
	Documents []model.DocumentMetadata `yaml:"documents" json:"documents"`
}

func checkCmd(configPath *string) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "check <input-file>",
		Short: "Run a one-shot compliance check from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runCheck(cfg, args[0], outputJSON)
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the full order as JSON")
	return cmd
}

func runCheck(cfg *config.Config, path string, outputJSON bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input file: %w", err)
	}
	var input checkInput
	if err := yaml.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("parse input file: %w", err)
	}

	registry, err := buildRegistry(cfg, nil)
	if err != nil {
		return err
	}
	conf := confidence.Model{
		CorroborationBonus: cfg.Check.CorroborationBonus,
		InsufficientData:   cfg.Check.InsufficientDataConfidence,
	}
	coordinator := check.New(registry, coordination.NewRegistry(coordination.DefaultRules()...),
		check.WithConfidenceModel(conf),
		check.WithEvaluatorTimeout(cfg.Check.EvaluatorTimeout),
	)

	id, err := coordinator.StartCheck(context.Background(), input.Project, input.Documents)
	if err != nil {
		return err
	}

	order, err := waitForResults(coordinator, id, cfg.Check.EvaluatorTimeout)
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(order)
	}
	printOrder(order)
	return nil
}

// waitForResults polls until the order reaches a terminal state.
func waitForResults(coordinator *check.Coordinator, id string, timeout time.Duration) (model.CheckOrder, error) {
	deadline := time.Now().Add(2*timeout + 5*time.Second)
	for {
		order, err := coordinator.Results(id)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, check.ErrNotReady) {
			return model.CheckOrder{}, err
		}
		status, err := coordinator.Status(id)
		if err != nil {
			return model.CheckOrder{}, err
		}
		if status.State == model.StateFailed {
			return model.CheckOrder{}, fmt.Errorf("check failed: %s", status.FailReason)
		}
		if time.Now().After(deadline) {
			return model.CheckOrder{}, fmt.Errorf("check %s did not finish in time", id)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printOrder(order model.CheckOrder) {
	fmt.Printf("Check %s: %d finding(s)\n", order.ID, order.Summary.Total)
	for severity, n := range order.Summary.BySeverity {
		fmt.Printf("  %s: %d\n", severity, n)
	}
	fmt.Println()
	for _, f := range order.Findings {
		fmt.Printf("[%s] %s (%s)\n", f.Severity, f.Title, f.Trade)
		fmt.Printf("    %s\n", f.Description)
		if f.NormRef != "" {
			fmt.Printf("    Norm: %s\n", f.NormRef)
		}
		if f.Recommendation != "" {
			fmt.Printf("    Recommendation: %s\n", f.Recommendation)
		}
		fmt.Printf("    Confidence: %.2f  Source: %s\n", f.Confidence, f.Source)
	}
	for _, d := range order.Diagnostics {
		fmt.Printf("WARNING: evaluator %s failed: %s\n", d.Source, d.Reason)
	}
}
