package scenario

import (
	"time"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// Recorder collects the step results of one scenario.
type Recorder struct {
	scenario string
	steps    []core.StepResult
}

// NewRecorder returns an empty recorder for the named scenario.
func NewRecorder(scenario string) *Recorder {
	return &Recorder{scenario: scenario}
}

// Step runs fn as a named step, records its outcome and returns its error.
func (r *Recorder) Step(name string, fn func() error) error {
	step := core.StepResult{
		Index:     len(r.steps),
		Name:      name,
		StartTime: time.Now(),
	}
	err := fn()
	step.Duration = time.Since(step.StartTime)
	step.Status = core.StatusForError(err)

	fields := map[string]interface{}{
		"scenario": r.scenario,
		"step":     name,
		"duration": step.Duration.Round(time.Millisecond),
	}
	if err != nil {
		step.Category = core.CategoryOf(err)
		step.Error = err.Error()
		fields["category"] = step.Category.String()
		logger.With(fields).Errorf("step %s: %v", step.Status, err)
	} else {
		logger.With(fields).Info("step passed")
	}

	r.steps = append(r.steps, step)
	return err
}

// Skip records a step that was not run.
func (r *Recorder) Skip(name, reason string) {
	r.steps = append(r.steps, core.StepResult{
		Index:     len(r.steps),
		Name:      name,
		Status:    core.StatusSkipped,
		StartTime: time.Now(),
		Message:   reason,
	})
	logger.With(map[string]interface{}{"scenario": r.scenario, "step": name}).Warnf("step skipped: %s", reason)
}

// Steps returns the recorded steps.
func (r *Recorder) Steps() []core.StepResult {
	return append([]core.StepResult(nil), r.steps...)
}
