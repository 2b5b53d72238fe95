package core

import (
	"time"
)

// StepResult captures the outcome of one named step of a scenario
type StepResult struct {
	Index     int           `json:"index"` // 0-based position in the scenario
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Category  ErrorCategory `json:"errorCategory,omitempty"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ScenarioResult captures the complete outcome of one scenario run against one session
type ScenarioResult struct {
	Name string `json:"name"`

	Status   Status        `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps       []StepResult `json:"steps"`
	Attachments []Attachment `json:"attachments,omitempty"`

	Error string `json:"error,omitempty"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
}

// ComputeSummary calculates step counts from the Steps slice
func (r *ScenarioResult) ComputeSummary() {
	r.TotalSteps = len(r.Steps)
	r.PassedSteps = 0
	r.FailedSteps = 0
	r.SkippedSteps = 0

	for _, step := range r.Steps {
		switch step.Status {
		case StatusPassed:
			r.PassedSteps++
		case StatusFailed, StatusErrored:
			r.FailedSteps++
		case StatusSkipped:
			r.SkippedSteps++
		}
	}
}

// Finish sets the terminal status from the scenario error and computes the summary.
func (r *ScenarioResult) Finish(err error) {
	r.Duration = time.Since(r.StartTime)
	r.Status = StatusForError(err)
	if err != nil {
		r.Category = CategoryOf(err)
		r.Error = err.Error()
	}
	r.ComputeSummary()
}

// RunResult captures the outcome of a sequential run of scenarios
type RunResult struct {
	RunID     string        `json:"runId"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Scenarios []ScenarioResult `json:"scenarios"`

	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ComputeSummary calculates scenario counts from the Scenarios slice
func (r *RunResult) ComputeSummary() {
	r.Total = len(r.Scenarios)
	r.Passed = 0
	r.Failed = 0
	r.Skipped = 0

	for _, s := range r.Scenarios {
		switch s.Status {
		case StatusPassed:
			r.Passed++
		case StatusFailed, StatusErrored:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
	}
}

// Success returns true if at least one scenario ran and none failed
func (r *RunResult) Success() bool {
	for _, s := range r.Scenarios {
		if !s.Status.IsSuccess() {
			return false
		}
	}
	return len(r.Scenarios) > 0
}
