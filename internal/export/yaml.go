package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prompt-atelier/promptblocks/internal/blocks"
	"github.com/prompt-atelier/promptblocks/internal/models"
	"gopkg.in/yaml.v3"
)

// ReportConfig records how a batch run was produced.
type ReportConfig struct {
	Server    string `yaml:"server"`
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Timestamp string `yaml:"timestamp"`
}

// ReportResult is one image's outcome in the YAML report.
type ReportResult struct {
	ID     string            `yaml:"id"`
	Index  int               `yaml:"index"`
	Name   string            `yaml:"name"`
	Status string            `yaml:"status"`
	Prompt string            `yaml:"prompt,omitempty"`
	Error  string            `yaml:"error,omitempty"`
	Blocks map[string]string `yaml:"blocks,omitempty"`
}

// Report is the complete YAML document for a batch run.
type Report struct {
	Config  ReportConfig   `yaml:"config"`
	Summary ReportSummary  `yaml:"summary"`
	Results []ReportResult `yaml:"results"`
}

// ReportSummary mirrors the final progress snapshot.
type ReportSummary struct {
	Total     int `yaml:"total"`
	Succeeded int `yaml:"succeeded"`
	Failed    int `yaml:"failed"`
}

// SaveYAML writes a batch report to path.
func SaveYAML(path, server, provider, model string, complete *models.CompleteEvent) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	report := Report{
		Config: ReportConfig{
			Server:    server,
			Provider:  provider,
			Model:     model,
			Timestamp: time.Now().Format("2006-01-02_15-04-05"),
		},
		Summary: ReportSummary{
			Total:     complete.Progress.Total,
			Succeeded: complete.Progress.Succeeded,
			Failed:    complete.Progress.Failed,
		},
		Results: make([]ReportResult, 0, len(complete.Results)),
	}

	for _, item := range complete.Results {
		result := ReportResult{
			ID:     item.ID,
			Index:  item.Index,
			Name:   item.Name,
			Status: item.Status,
		}
		if item.Prompt != nil {
			result.Prompt = *item.Prompt
		}
		if item.Error != nil {
			result.Error = *item.Error
		}
		if item.Result != nil {
			result.Blocks = make(map[string]string, len(blocks.AllTypes))
			for _, t := range blocks.AllTypes {
				result.Blocks[string(t)] = item.Result.Value(t)
			}
		}
		report.Results = append(report.Results, result)
	}

	data, err := yaml.Marshal(&report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
