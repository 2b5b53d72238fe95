package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/core"
)

// FileName is the index file written into the output directory.
const FileName = "report.json"

// BuildIndex converts a run result into the report index.
func BuildIndex(result *core.RunResult, cfg *config.Config, runnerVersion string) *Index {
	index := &Index{
		Version:   Version,
		RunID:     result.RunID,
		Status:    StatusPassed,
		StartTime: result.StartTime,
		EndTime:   result.StartTime.Add(result.Duration),
		Duration:  result.Duration.Milliseconds(),
		Device: Device{
			ID:        cfg.Device.Name,
			Platform:  cfg.Device.PlatformName,
			OSVersion: cfg.Device.PlatformVersion,
		},
		App: App{
			ID:       cfg.App.Package,
			Activity: cfg.App.Activity,
		},
		Runner: RunnerInfo{
			Version: runnerVersion,
			Server:  cfg.Server.URL,
		},
		Summary: Summary{
			Total:   result.Total,
			Passed:  result.Passed,
			Failed:  result.Failed,
			Skipped: result.Skipped,
		},
		Scenarios: make([]ScenarioEntry, len(result.Scenarios)),
	}
	if !result.Success() {
		index.Status = StatusFailed
	}

	for i, sc := range result.Scenarios {
		entry := ScenarioEntry{
			Index:       i,
			Name:        sc.Name,
			Status:      statusOf(sc.Status),
			Category:    categoryOf(sc.Category),
			StartTime:   sc.StartTime,
			Duration:    sc.Duration.Milliseconds(),
			Steps:       make([]StepEntry, len(sc.Steps)),
			Attachments: sc.Attachments,
			Error:       sc.Error,
		}
		for j, step := range sc.Steps {
			entry.Steps[j] = StepEntry{
				Index:    step.Index,
				Name:     step.Name,
				Status:   statusOf(step.Status),
				Category: categoryOf(step.Category),
				Duration: step.Duration.Milliseconds(),
				Message:  step.Message,
				Error:    step.Error,
			}
		}
		index.Scenarios[i] = entry
	}
	return index
}

func categoryOf(c core.ErrorCategory) string {
	if c == core.ErrCategoryNone {
		return ""
	}
	return c.String()
}

// Write writes report.json for result into dir and returns its path.
func Write(dir string, result *core.RunResult, cfg *config.Config, runnerVersion string) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := atomicWriteJSON(path, BuildIndex(result, cfg, runnerVersion)); err != nil {
		return "", fmt.Errorf("write index: %w", err)
	}
	return path, nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v to a temp file next to path and renames it into
// place, so readers never see a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //#nosec G306 -- reports are meant to be shared
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
