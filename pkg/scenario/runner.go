package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// OpenFunc opens a session for one scenario.
type OpenFunc func(ctx context.Context, cfg *config.Config) (*Session, error)

// Runner executes scenarios strictly one after another, each in its own session.
type Runner struct {
	Config *config.Config
	Open   OpenFunc
}

// NewRunner returns a runner that opens real sessions.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{Config: cfg, Open: Open}
}

// Resolve maps names to registered scenarios. Empty names select the
// configured scenarios.
func (r *Runner) Resolve(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		names = r.Config.Scenarios
	}
	if len(names) == 0 {
		return nil, core.ErrMissingRequired.WithMessage("no scenarios selected")
	}

	scenarios := make([]Scenario, 0, len(names))
	for _, name := range names {
		s, ok := Lookup(name)
		if !ok {
			return nil, core.ErrInvalidConfig.
				WithMessage(fmt.Sprintf("unknown scenario %q", name)).
				WithDetails(map[string]interface{}{"available": Names()})
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Run executes the named scenarios. Scenario failures are reported in the
// result; the error is non-nil only when nothing could be run.
func (r *Runner) Run(ctx context.Context, names []string) (*core.RunResult, error) {
	scenarios, err := r.Resolve(names)
	if err != nil {
		return nil, err
	}

	result := &core.RunResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	log := logger.With(map[string]interface{}{"run": result.RunID})
	log.Infof("running %d scenario(s)", len(scenarios))

	for _, s := range scenarios {
		if ctx.Err() != nil {
			result.Scenarios = append(result.Scenarios, core.ScenarioResult{
				Name:      s.Name(),
				Status:    core.StatusSkipped,
				StartTime: time.Now(),
				Error:     "run canceled",
			})
			continue
		}
		result.Scenarios = append(result.Scenarios, r.runOne(ctx, result.RunID, s))
	}

	result.Duration = time.Since(result.StartTime)
	result.ComputeSummary()
	log.Infof("run finished: %d passed, %d failed, %d skipped", result.Passed, result.Failed, result.Skipped)
	return result, nil
}

// runOne opens a session, runs s and closes the session on every path.
func (r *Runner) runOne(ctx context.Context, runID string, s Scenario) core.ScenarioResult {
	res := core.ScenarioResult{
		Name:      s.Name(),
		Status:    core.StatusRunning,
		StartTime: time.Now(),
	}
	log := logger.With(map[string]interface{}{"run": runID, "scenario": s.Name()})
	log.Info("scenario started")

	sess, err := r.Open(ctx, r.Config)
	if err != nil {
		res.Finish(err)
		log.Errorf("session could not be opened: %v", err)
		return res
	}
	defer sess.Close()

	rec := NewRecorder(s.Name())
	err = s.Run(ctx, sess, rec)
	res.Steps = rec.Steps()
	res.Finish(err)

	// capture while the session is still open
	res.Attachments = r.capture(sess, runID, &res)

	if err != nil {
		log.Errorf("scenario %s: %v", res.Status, err)
	} else {
		log.Infof("scenario passed in %s", res.Duration.Round(time.Millisecond))
	}
	return res
}

// capture writes the artifacts the screenshot config asks for. Capture
// failures are logged and never change the scenario status.
func (r *Runner) capture(sess *Session, runID string, res *core.ScenarioResult) []core.Attachment {
	cfg := r.Config.Screenshots
	if !cfg.ShouldCapture(res.Status) {
		return nil
	}

	dir := cfg.ArtifactPath(runID)
	at := time.Now()
	var attachments []core.Attachment

	path, err := sess.Actions.TakeScreenshot(dir, core.ArtifactName(res.Name, res.Status, at, ".png"))
	if err != nil {
		logger.Warn("screenshot for %s failed: %v", res.Name, err)
	} else {
		attachments = append(attachments, core.NewScreenshotAttachment(path))
	}

	if cfg.Hierarchy {
		path, err := sess.Actions.SaveHierarchy(dir, core.ArtifactName(res.Name, res.Status, at, ".xml"))
		if err != nil {
			logger.Warn("hierarchy for %s failed: %v", res.Name, err)
		} else {
			attachments = append(attachments, core.NewHierarchyAttachment(path))
		}
	}
	return attachments
}
