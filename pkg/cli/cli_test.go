package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appui-runner/pkg/appiumtest"
	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/device"
	"github.com/devicelab-dev/appui-runner/pkg/report"
	"github.com/devicelab-dev/appui-runner/pkg/scenario"
)

const testConfigYAML = `server:
  url: http://127.0.0.1:1/wd/hub
device:
  name: 7c1fddbf
app:
  package: cn.jiazhengye.panda_home
timeouts:
  implicit: 1s
  explicit: 200ms
  poll: 10ms
swipe:
  duration: 50ms
  maxAttempts: 5
  timeout: 5s
  settle: -1ns
locators:
  home:
    icons: {strategy: class name, value: android.widget.ImageView}
    entry: {strategy: id, value: "cn.jiazhengye.panda_home:id/iv_entry"}
scenarios:
  - slide-and-click-entry
`

var entryLocator = core.ByID("cn.jiazhengye.panda_home:id/iv_entry")

// shellFunc adapts a function to device.Shell.
type shellFunc func(cmd string) (string, error)

func (f shellFunc) Shell(cmd string) (string, error) { return f(cmd) }

// useFakeSession routes openSession to s-backed sessions using shell.
func useFakeSession(t *testing.T, shell device.Shell) {
	t.Helper()
	prev := openSession
	openSession = func(ctx context.Context, cfg *config.Config) (*scenario.Session, error) {
		return scenario.OpenWith(ctx, cfg, shell)
	}
	t.Cleanup(func() { openSession = prev })
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runApp runs the CLI with args and returns stdout and the error.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"appui-runner"}, args...))
	return stdout.String(), err
}

// readIndex decodes the report.json written into dir.
func readIndex(t *testing.T, dir string) *report.Index {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, report.FileName))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var index report.Index
	if err := json.Unmarshal(data, &index); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	return &index
}

func TestResolveOutputDir_Default(t *testing.T) {
	t.Setenv("APPUI_RUNNER_HOME", "/tmp/appui-home")
	config.ResetHome()
	defer config.ResetHome()

	now := time.Date(2024, 3, 1, 10, 4, 5, 0, time.UTC)
	dir, err := resolveOutputDir("", false, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join("/tmp/appui-home", "reports", "2024-03-01_10-04-05")
	if dir != want {
		t.Errorf("expected %s, got %s", want, dir)
	}
}

func TestResolveOutputDir_CustomOutput(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", false, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "my-reports/") {
		t.Errorf("expected dir to start with my-reports/, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	_, err := resolveOutputDir("", true, time.Now())
	if err == nil {
		t.Error("expected error when flatten is used without output")
	}
}

func TestNewApp_FlagsParseWithoutPanic(t *testing.T) {
	s := appiumtest.NewServer(t)
	s.AddElement(appiumtest.Element{Locator: entryLocator, Displayed: true, Enabled: true})
	useFakeSession(t, nil)
	cfg := writeConfig(t)

	cases := [][]string{
		{"list"},
		{"--help"},
		{"--version"},
		{"-v"},
		{"--verbose", "list"},
		{"--config", cfg, "--appium-url", s.URL(), "--verbose", "--no-ansi",
			"run", "--output", t.TempDir(), "--flatten"},
	}
	for _, args := range cases {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("%v panicked: %v", args, r)
				}
			}()
			out, err := runApp(t, args...)
			if err != nil {
				t.Errorf("%v: %v\n%s", args, err, out)
			}
		}()
	}
}

func TestNewApp_VersionFlag(t *testing.T) {
	out, err := runApp(t, "-v")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, Version) {
		t.Errorf("-v should print the version, got %q", out)
	}
}

func TestListCommand(t *testing.T) {
	out, err := runApp(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{scenario.AllIconsClickableName, scenario.SlideAndClickEntryName} {
		if !strings.Contains(out, name) {
			t.Errorf("list output missing %s:\n%s", name, out)
		}
	}
}

func TestRunCommand_Pass(t *testing.T) {
	s := appiumtest.NewServer(t)
	entry := s.AddElement(appiumtest.Element{Locator: entryLocator, Displayed: true, Enabled: true, RevealAfterGestures: 2})
	useFakeSession(t, nil)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := runApp(t, "--config", writeConfig(t), "--appium-url", s.URL(), "--no-ansi",
		"run", "--output", outDir, "--flatten")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	if !strings.Contains(out, "PASS  slide-and-click-entry") {
		t.Errorf("summary missing pass line:\n%s", out)
	}
	if clicks := s.Clicks(); len(clicks) != 1 || clicks[0] != entry {
		t.Errorf("clicks = %v", clicks)
	}

	index := readIndex(t, outDir)
	if index.Status != report.StatusPassed || index.Device.ID != "7c1fddbf" || index.Runner.Server != s.URL() {
		t.Errorf("index = %+v", index)
	}
}

func TestRunCommand_FailureExitCode(t *testing.T) {
	s := appiumtest.NewServer(t)
	s.AddElement(appiumtest.Element{Locator: entryLocator, Displayed: true, Enabled: true, RevealAfterGestures: 3})
	useFakeSession(t, nil)
	outDir := filepath.Join(t.TempDir(), "out")

	_, err := runApp(t, "--config", writeConfig(t), "--appium-url", s.URL(), "--no-ansi",
		"run", "--output", outDir, "--flatten", "--swipe-max-attempts", "2")

	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if n := len(s.Gestures()); n != 1 {
		t.Errorf("swipes = %d, want 1", n)
	}

	index := readIndex(t, outDir)
	sc := index.Scenarios[0]
	if sc.Status != report.StatusErrored || sc.Category != "timeout" {
		t.Errorf("scenario = %+v", sc)
	}
	if len(sc.Attachments) != 1 {
		t.Fatalf("attachments = %+v", sc.Attachments)
	}
	if !strings.HasPrefix(sc.Attachments[0].Path, filepath.Join(outDir, "screenshots")) {
		t.Errorf("screenshot path = %s", sc.Attachments[0].Path)
	}
}

func TestRunCommand_UnknownScenario(t *testing.T) {
	s := appiumtest.NewServer(t)
	useFakeSession(t, nil)

	_, err := runApp(t, "--config", writeConfig(t), "--appium-url", s.URL(),
		"run", "--output", t.TempDir(), "--flatten", "no-such-scenario")
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	useFakeSession(t, nil)

	_, err := runApp(t, "--config", writeConfig(t), "--app-package", "",
		"run", "--output", t.TempDir(), "--flatten")
	if !errors.Is(err, core.ErrMissingRequired) {
		t.Fatalf("expected ErrMissingRequired, got %v", err)
	}
}

func TestPermissionCommands(t *testing.T) {
	s := appiumtest.NewServer(t)
	granted := map[string]bool{}
	useFakeSession(t, shellFunc(func(cmd string) (string, error) {
		var perm, pkg string
		switch {
		case strings.HasPrefix(cmd, "pm check-permission"):
			fmt.Sscanf(cmd, "pm check-permission -u 0 %s %s", &perm, &pkg)
			if granted[perm] {
				return "granted", nil
			}
			return "not granted", nil
		case strings.HasPrefix(cmd, "pm grant"):
			fmt.Sscanf(cmd, "pm grant %s %s", &pkg, &perm)
			granted[perm] = true
		case strings.HasPrefix(cmd, "pm revoke"):
			fmt.Sscanf(cmd, "pm revoke %s %s", &pkg, &perm)
			granted[perm] = false
		}
		return "", nil
	}))
	cfg := writeConfig(t)
	const camera = "android.permission.CAMERA"

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"permission", "check", camera}, camera + ": denied"},
		{[]string{"permission", "grant", camera}, camera + ": granted"},
		{[]string{"permission", "check", camera}, camera + ": granted"},
		{[]string{"permission", "revoke", camera}, camera + ": revoked"},
		{[]string{"permission", "check", camera}, camera + ": denied"},
	}
	for _, step := range steps {
		args := append([]string{"--config", cfg, "--appium-url", s.URL()}, step.args...)
		out, err := runApp(t, args...)
		if err != nil {
			t.Fatalf("%v: %v", step.args, err)
		}
		if strings.TrimSpace(out) != step.want {
			t.Errorf("%v: output %q, want %q", step.args, out, step.want)
		}
	}
	if s.SessionsCreated() != len(steps) || s.SessionActive() {
		t.Errorf("each command should open and close one session: created=%d active=%v",
			s.SessionsCreated(), s.SessionActive())
	}
}

func TestPermissionCommand_MissingArgument(t *testing.T) {
	s := appiumtest.NewServer(t)
	useFakeSession(t, nil)

	if _, err := runApp(t, "--config", writeConfig(t), "--appium-url", s.URL(), "permission", "grant"); err == nil {
		t.Fatal("expected error without a permission argument")
	}
	if s.SessionsCreated() != 0 {
		t.Error("no session should be opened when arguments are invalid")
	}
}

func TestPermissionCommand_NoShell(t *testing.T) {
	s := appiumtest.NewServer(t)
	useFakeSession(t, nil)

	_, err := runApp(t, "--config", writeConfig(t), "--appium-url", s.URL(),
		"permission", "check", "android.permission.CAMERA")
	if !errors.Is(err, core.ErrNoDeviceShell) {
		t.Fatalf("expected ErrNoDeviceShell, got %v", err)
	}
}

func TestAppCommands(t *testing.T) {
	s := appiumtest.NewServer(t)
	var commands []string
	useFakeSession(t, shellFunc(func(cmd string) (string, error) {
		commands = append(commands, cmd)
		switch {
		case strings.HasPrefix(cmd, "pm path"):
			return "package:/data/app/cn.jiazhengye.panda_home-1/base.apk\n", nil
		case strings.HasPrefix(cmd, "pm clear"):
			return "Success\n", nil
		}
		return "", nil
	}))
	cfg := writeConfig(t)

	out, err := runApp(t, "--config", cfg, "--appium-url", s.URL(), "app", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "/data/app/cn.jiazhengye.panda_home-1/base.apk" {
		t.Errorf("app path output = %q", out)
	}

	out, err = runApp(t, "--config", cfg, "--appium-url", s.URL(), "app", "clear")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cleared") {
		t.Errorf("app clear output = %q", out)
	}

	want := []string{"pm path cn.jiazhengye.panda_home", "pm clear cn.jiazhengye.panda_home"}
	if len(commands) != 2 || commands[0] != want[0] || commands[1] != want[1] {
		t.Errorf("commands = %v, want %v", commands, want)
	}
}

// useFakeADB replaces adb discovery for the devices command.
func useFakeADB(t *testing.T, entries []device.Entry, infos map[string]device.DeviceInfo) *[]string {
	t.Helper()
	var queried []string
	prevList, prevInfo := adbDevices, adbDeviceInfo
	adbDevices = func() ([]device.Entry, error) { return entries, nil }
	adbDeviceInfo = func(serial string) (device.DeviceInfo, error) {
		queried = append(queried, serial)
		info, ok := infos[serial]
		if !ok {
			return device.DeviceInfo{}, errors.New("device not found")
		}
		return info, nil
	}
	t.Cleanup(func() { adbDevices, adbDeviceInfo = prevList, prevInfo })
	return &queried
}

func TestDevicesCommand(t *testing.T) {
	queried := useFakeADB(t,
		[]device.Entry{
			{Serial: "7c1fddbf", State: "device", Model: "MI_8"},
			{Serial: "emulator-5554", State: "device"},
			{Serial: "R58M42", State: "unauthorized"},
		},
		map[string]device.DeviceInfo{
			"7c1fddbf":      {Serial: "7c1fddbf", Model: "MI 8", Brand: "Xiaomi", Release: "10", SDK: "29"},
			"emulator-5554": {Serial: "emulator-5554", Model: "sdk_gphone64", Brand: "google", Release: "14", SDK: "34", IsEmulator: true},
		})

	out, err := runApp(t, "devices")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows:\n%s", out)
	}
	if f := strings.Fields(lines[0]); strings.Join(f, " ") != "SERIAL STATE MODEL BRAND ANDROID SDK EMULATOR" {
		t.Errorf("header = %q", lines[0])
	}
	want := [][]string{
		{"7c1fddbf", "device", "MI", "8", "Xiaomi", "10", "29", "no"},
		{"emulator-5554", "device", "sdk_gphone64", "google", "14", "34", "yes"},
		{"R58M42", "unauthorized", "-", "-", "-", "-", "-"},
	}
	for i, w := range want {
		if got := strings.Fields(lines[i+1]); strings.Join(got, " ") != strings.Join(w, " ") {
			t.Errorf("row %d = %q, want %q", i, got, w)
		}
	}
	// unauthorized devices do not answer getprop
	if len(*queried) != 2 {
		t.Errorf("queried = %v", *queried)
	}
}

func TestDevicesCommand_InfoUnavailable(t *testing.T) {
	useFakeADB(t, []device.Entry{{Serial: "7c1fddbf", State: "device", Model: "MI_8"}}, nil)

	out, err := runApp(t, "devices")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "MI_8") {
		t.Errorf("adb model should be kept when properties are unavailable:\n%s", out)
	}
}

func TestDevicesCommand_None(t *testing.T) {
	useFakeADB(t, nil, nil)

	out, err := runApp(t, "devices")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "no devices attached" {
		t.Errorf("output = %q", out)
	}
}

const inspectSource = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <android.widget.FrameLayout class="android.widget.FrameLayout" bounds="[0,0][1080,2400]" clickable="false" enabled="true">
    <android.widget.TextView class="android.widget.TextView" resource-id="cn.jiazhengye.panda_home:id/tv_agree" text="Agree" clickable="true" enabled="true" bounds="[40,2000][1040,2120]"/>
    <android.widget.TextView class="android.widget.TextView" text="Terms" clickable="false" enabled="true" bounds="[40,1800][1040,1900]"/>
  </android.widget.FrameLayout>
</hierarchy>`

func TestInspectCommand(t *testing.T) {
	s := appiumtest.NewServer(t)
	s.SetSource(inspectSource)
	useFakeSession(t, nil)
	cfg := writeConfig(t)
	saveDir := t.TempDir()

	out, err := runApp(t, "--config", cfg, "--appium-url", s.URL(), "inspect", "--save", saveDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "id=cn.jiazhengye.panda_home:id/tv_agree") || !strings.Contains(out, "[40,2000][1040,2120]") {
		t.Errorf("inspect output missing clickable node:\n%s", out)
	}
	if strings.Contains(out, "Terms") {
		t.Errorf("non-clickable node should be filtered:\n%s", out)
	}
	if data, err := os.ReadFile(filepath.Join(saveDir, "source.xml")); err != nil || string(data) != inspectSource {
		t.Errorf("saved source = %q, %v", data, err)
	}

	out, err = runApp(t, "--config", cfg, "--appium-url", s.URL(), "inspect", "--all")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Terms") || !strings.Contains(out, "class name=android.widget.FrameLayout") {
		t.Errorf("--all should list every node:\n%s", out)
	}
}
