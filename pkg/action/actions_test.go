package action

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/appui-runner/pkg/appiumtest"
	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
)

var (
	agreeService = core.ByID("cn.jiazhengye.panda_home:id/tv_agree")
	accountInput = core.ByID("cn.jiazhengye.panda_home:id/et_account")
	missing      = core.ByID("cn.jiazhengye.panda_home:id/missing")
)

func testOptions() Options {
	return Options{
		WaitTimeout:      300 * time.Millisecond,
		PollInterval:     10 * time.Millisecond,
		SwipeDuration:    100 * time.Millisecond,
		SwipeMaxAttempts: 5,
		SwipeTimeout:     5 * time.Second,
		SwipeSettle:      -1,
	}
}

// newTestActions connects a facade to a fresh fake server.
func newTestActions(t *testing.T, pm PackageManager) (*appiumtest.Server, *Actions) {
	t.Helper()
	s := appiumtest.NewServer(t)
	client := appium.NewClient(s.URL())
	if err := client.Connect(map[string]interface{}{"platformName": "Android"}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect() })
	return s, New(client, pm, testOptions())
}

func TestNew_Defaults(t *testing.T) {
	a := New(nil, nil, Options{})
	if a.Options() != DefaultOptions() {
		t.Errorf("Options() = %+v, want defaults", a.Options())
	}

	a = New(nil, nil, Options{SwipeMaxAttempts: 3, SwipeSettle: -1})
	if a.Options().SwipeMaxAttempts != 3 || a.Options().SwipeSettle != 0 {
		t.Errorf("overrides not kept: %+v", a.Options())
	}
}

func TestFindElement(t *testing.T) {
	s, a := newTestActions(t, nil)
	id := s.Add(agreeService, "Agree")

	el, err := a.FindElement(agreeService)
	if err != nil {
		t.Fatalf("FindElement failed: %v", err)
	}
	if el.ID != id || el.Locator != agreeService {
		t.Errorf("FindElement = %+v", el)
	}
}

func TestFindElement_NotFound(t *testing.T) {
	_, a := newTestActions(t, nil)

	_, err := a.FindElement(missing)
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if !appium.IsNoSuchElement(err) {
		t.Error("driver error should be kept as cause")
	}
	if core.CategoryOf(err) != core.ErrCategoryAssertion {
		t.Errorf("category = %v", core.CategoryOf(err))
	}
}

func TestFindElements_Empty(t *testing.T) {
	s, a := newTestActions(t, nil)
	icons := core.ByClassName("android.widget.ImageView")

	els, err := a.FindElements(icons)
	if err != nil || len(els) != 0 {
		t.Fatalf("FindElements = %v, %v; want empty", els, err)
	}

	s.Add(icons, "")
	s.Add(icons, "")
	els, err = a.FindElements(icons)
	if err != nil || len(els) != 2 {
		t.Fatalf("FindElements = %v, %v; want 2", els, err)
	}
}

func TestClick_AbsentKeepsSessionUsable(t *testing.T) {
	s, a := newTestActions(t, nil)
	id := s.Add(agreeService, "Agree")

	if err := a.Click(missing); !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if err := a.Click(agreeService); err != nil {
		t.Fatalf("Click after failure: %v", err)
	}
	if clicks := s.Clicks(); len(clicks) != 1 || clicks[0] != id {
		t.Errorf("clicks = %v", clicks)
	}
}

func TestClick_ReResolvesLocator(t *testing.T) {
	s, a := newTestActions(t, nil)
	first := s.Add(agreeService, "")

	if err := a.Click(agreeService); err != nil {
		t.Fatal(err)
	}
	// screen transition replaces the node
	s.Remove(first)
	second := s.Add(agreeService, "")
	if err := a.Click(agreeService); err != nil {
		t.Fatal(err)
	}

	clicks := s.Clicks()
	if len(clicks) != 2 || clicks[0] != first || clicks[1] != second {
		t.Errorf("clicks = %v", clicks)
	}
}

func TestClickElement_Stale(t *testing.T) {
	s, a := newTestActions(t, nil)
	s.Add(agreeService, "")
	el, err := a.FindElement(agreeService)
	if err != nil {
		t.Fatal(err)
	}
	s.Update(el.ID, func(e *appiumtest.Element) { e.Stale = true })

	if err := a.ClickElement(el); !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("expected ErrElementNotFound for stale handle, got %v", err)
	}
}

func TestInputClearGetText(t *testing.T) {
	s, a := newTestActions(t, nil)
	id := s.Add(accountInput, "")

	if err := a.InputText(accountInput, "15137139921"); err != nil {
		t.Fatalf("InputText failed: %v", err)
	}
	text, err := a.GetText(accountInput)
	if err != nil || text != "15137139921" {
		t.Errorf("GetText = %q, %v", text, err)
	}

	if err := a.ClearText(accountInput); err != nil {
		t.Fatalf("ClearText failed: %v", err)
	}
	if s.Text(id) != "" {
		t.Errorf("text after clear = %q", s.Text(id))
	}

	if _, err := a.GetText(missing); !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("GetText(missing) = %v", err)
	}
}

func TestWaitUntilClickable(t *testing.T) {
	s, a := newTestActions(t, nil)
	id := s.AddElement(appiumtest.Element{Locator: agreeService, Displayed: true, Enabled: false})
	time.AfterFunc(50*time.Millisecond, func() {
		s.Update(id, func(e *appiumtest.Element) { e.Enabled = true })
	})

	el, err := a.WaitUntilClickable(context.Background(), agreeService, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitUntilClickable failed: %v", err)
	}
	if el.ID != id {
		t.Errorf("element = %+v", el)
	}
}

func TestWaitUntilClickable_Timeout(t *testing.T) {
	s, a := newTestActions(t, nil)
	s.AddElement(appiumtest.Element{Locator: agreeService, Displayed: true, Enabled: false})

	start := time.Now()
	_, err := a.WaitUntilClickable(context.Background(), agreeService, 100*time.Millisecond)
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if !errors.Is(err, core.ErrWaitTimeout) {
		t.Error("ErrWaitTimeout should be in the chain")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("wait took %s", elapsed)
	}
}

func TestWaitUntilVisible(t *testing.T) {
	s, a := newTestActions(t, nil)
	s.AddElement(appiumtest.Element{Locator: agreeService, Displayed: false, Enabled: true})

	if _, err := a.WaitUntilVisible(context.Background(), agreeService, 0); !errors.Is(err, core.ErrWaitTimeout) {
		t.Fatalf("hidden element: expected wait timeout, got %v", err)
	}

	s.Add(accountInput, "")
	if _, err := a.WaitUntilVisible(context.Background(), accountInput, 0); err != nil {
		t.Errorf("visible element: %v", err)
	}
}

func TestWaitUntilPresent_AfterDelay(t *testing.T) {
	s, a := newTestActions(t, nil)
	time.AfterFunc(50*time.Millisecond, func() { s.Add(agreeService, "") })

	if _, err := a.WaitUntilPresent(context.Background(), agreeService, 2*time.Second); err != nil {
		t.Errorf("WaitUntilPresent failed: %v", err)
	}
}

func TestWait_ContextCanceled(t *testing.T) {
	_, a := newTestActions(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.WaitUntilPresent(ctx, missing, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWait_CancelAbortsInFlightFind(t *testing.T) {
	s := appiumtest.NewServer(t)
	s.SetFindDelay(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	client := appium.NewClient(s.URL())
	client.SetContext(ctx)
	if err := client.Connect(map[string]interface{}{"platformName": "Android"}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Disconnect() })
	a := New(client, nil, testOptions())

	time.AfterFunc(50*time.Millisecond, cancel)
	start := time.Now()
	_, err := a.WaitUntilPresent(ctx, missing, 10*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, core.ErrServerUnreachable) {
		t.Error("cancellation is not a transport failure")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("canceled wait took %v", elapsed)
	}
}

func TestWait_ServerUnreachable(t *testing.T) {
	s, a := newTestActions(t, nil)
	s.Close()

	start := time.Now()
	_, err := a.WaitUntilPresent(context.Background(), agreeService, 5*time.Second)
	if !errors.Is(err, core.ErrServerUnreachable) {
		t.Fatalf("expected ErrServerUnreachable, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("transport failure should end the wait early")
	}
}

func TestAssertElementExists(t *testing.T) {
	s, a := newTestActions(t, nil)
	s.Add(agreeService, "")

	if _, err := a.AssertElementExists(context.Background(), agreeService, 0); err != nil {
		t.Errorf("AssertElementExists failed: %v", err)
	}

	_, err := a.AssertElementExists(context.Background(), missing, 50*time.Millisecond)
	if !errors.Is(err, core.ErrAssertionFailed) {
		t.Errorf("expected ErrAssertionFailed, got %v", err)
	}
}

func TestAssertElementText(t *testing.T) {
	s, a := newTestActions(t, nil)
	s.Add(agreeService, "Agree")

	if err := a.AssertElementText(agreeService, "Agree"); err != nil {
		t.Errorf("matching text: %v", err)
	}

	err := a.AssertElementText(agreeService, "Disagree")
	if !errors.Is(err, core.ErrTextMismatch) {
		t.Fatalf("expected ErrTextMismatch, got %v", err)
	}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) && execErr.Details["actual"] != "Agree" {
		t.Errorf("details = %v", execErr.Details)
	}
}

func TestGoBackAndHideKeyboard(t *testing.T) {
	s, a := newTestActions(t, nil)

	if err := a.GoBack(); err != nil {
		t.Fatal(err)
	}
	if err := a.HideKeyboard(); err != nil {
		t.Fatal(err)
	}
	if s.Backs() != 1 || s.KeyboardHides() != 1 {
		t.Errorf("backs=%d hides=%d", s.Backs(), s.KeyboardHides())
	}
}

func TestTakeScreenshot_CreatesDirectory(t *testing.T) {
	s, a := newTestActions(t, nil)
	dir := filepath.Join(t.TempDir(), "screenshots", "nested")

	path, err := a.TakeScreenshot(dir, "start.png")
	if err != nil {
		t.Fatalf("TakeScreenshot failed: %v", err)
	}
	if path != filepath.Join(dir, "start.png") {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("screenshot not written: %v", err)
	}
	if string(data) != string(s.Screenshot()) {
		t.Error("screenshot content mismatch")
	}
}

func TestSaveHierarchy(t *testing.T) {
	s, a := newTestActions(t, nil)
	s.SetSource(`<hierarchy rotation="0"><node/></hierarchy>`)
	dir := t.TempDir()

	path, err := a.SaveHierarchy(dir, "home.xml")
	if err != nil {
		t.Fatalf("SaveHierarchy failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != `<hierarchy rotation="0"><node/></hierarchy>` {
		t.Errorf("hierarchy = %q", data)
	}
}
