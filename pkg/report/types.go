// Package report writes run results to disk and to the terminal.
//
// Layout of an output directory:
//   - report.json: the run index with summary, scenarios and their steps
//   - <run-id>/: failure artifacts (screenshots, hierarchy dumps) referenced by path
package report

import (
	"time"

	"github.com/devicelab-dev/appui-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusErrored || s == StatusSkipped
}

// statusOf converts a core status to its report form.
func statusOf(s core.Status) Status {
	return Status(s.String())
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the report file for one run.
type Index struct {
	Version   string          `json:"version"`
	RunID     string          `json:"runId"`
	Status    Status          `json:"status"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Duration  int64           `json:"duration"` // milliseconds
	Device    Device          `json:"device"`
	App       App             `json:"app"`
	Runner    RunnerInfo      `json:"runner"`
	Summary   Summary         `json:"summary"`
	Scenarios []ScenarioEntry `json:"scenarios"`
}

// Device contains device information.
type Device struct {
	ID        string `json:"id"`
	Platform  string `json:"platform"`
	OSVersion string `json:"osVersion,omitempty"`
	Model     string `json:"model,omitempty"`
}

// App contains application information.
type App struct {
	ID       string `json:"id"` // package name
	Activity string `json:"activity,omitempty"`
}

// RunnerInfo contains appui-runner information.
type RunnerInfo struct {
	Version string `json:"version"`
	Server  string `json:"server"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ScenarioEntry is the outcome of one scenario.
type ScenarioEntry struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Status      Status            `json:"status"`
	Category    string            `json:"errorCategory,omitempty"`
	StartTime   time.Time         `json:"startTime"`
	Duration    int64             `json:"duration"` // milliseconds
	Steps       []StepEntry       `json:"steps"`
	Attachments []core.Attachment `json:"attachments,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// StepEntry is the outcome of one step.
type StepEntry struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Category string `json:"errorCategory,omitempty"`
	Duration int64  `json:"duration"` // milliseconds
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
