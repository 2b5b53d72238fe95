// Package device provides the adb shell channel to an Android device.
package device

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNoDevices is returned when adb lists no device in the "device" state.
var ErrNoDevices = errors.New("no connected Android devices found")

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial  string
	adbPath string
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Release    string
	Brand      string
	IsEmulator bool
}

// Entry is one line of `adb devices -l`.
type Entry struct {
	Serial string
	State  string // device, offline, unauthorized
	Model  string
}

// New creates an AndroidDevice for the given serial.
// If serial is empty, it auto-detects the connected device.
func New(serial string) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}

	// Auto-detect serial if not provided
	if serial == "" {
		entry, err := firstAvailable(adbPath)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
		serial = entry.Serial
	}

	d := &AndroidDevice{
		serial:  serial,
		adbPath: adbPath,
	}

	// Verify device is connected
	if err := d.waitForDevice(5 * time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}

	return d, nil
}

// ListDevices returns every device adb knows about, in any state.
func ListDevices() ([]Entry, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	return listDevices(adbPath)
}

func firstAvailable(adbPath string) (Entry, error) {
	entries, err := listDevices(adbPath)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.State == "device" {
			return e, nil
		}
	}
	return Entry{}, ErrNoDevices
}

func listDevices(adbPath string) ([]Entry, error) {
	out, err := exec.Command(adbPath, "devices", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}
	return parseDevices(string(out)), nil
}

// parseDevices parses the output of `adb devices -l`.
func parseDevices(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		e := Entry{Serial: parts[0], State: parts[1]}
		for _, p := range parts[2:] {
			if strings.HasPrefix(p, "model:") {
				e.Model = strings.TrimPrefix(p, "model:")
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(cmd string) (string, error) {
	return d.adb("shell", cmd)
}

// Info returns device information.
func (d *AndroidDevice) Info() (DeviceInfo, error) {
	return readInfo(d, d.serial), nil
}

// readInfo reads build properties over sh. Properties that cannot be read stay empty.
func readInfo(sh Shell, serial string) DeviceInfo {
	prop := func(name string) string {
		out, err := sh.Shell("getprop " + name)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(out)
	}
	return DeviceInfo{
		Serial:     serial,
		Model:      prop("ro.product.model"),
		SDK:        prop("ro.build.version.sdk"),
		Release:    prop("ro.build.version.release"),
		Brand:      prop("ro.product.brand"),
		IsEmulator: prop("ro.kernel.qemu") == "1",
	}
}

// adb executes an ADB command.
func (d *AndroidDevice) adb(args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.Command(d.adbPath, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(errMsg))
	}

	return stdout.String(), nil
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.isConnected() {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for device %s", d.serial)
}

// isConnected checks if the device is connected.
func (d *AndroidDevice) isConnected() bool {
	out, err := d.adb("get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "device"
}

// findADB locates the ADB binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK is installed")
}
