package action

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// Network connection bits reported by the UiAutomator2 driver.
const (
	NetworkAirplane = 1
	NetworkWifi     = 2
	NetworkData     = 4
)

// NetworkStatus is the decoded network connection bitmask.
type NetworkStatus struct {
	Mask     int  `json:"mask"`
	Airplane bool `json:"airplane"`
	Wifi     bool `json:"wifi"`
	Data     bool `json:"data"`
}

// Connected reports whether any data path is up.
func (n NetworkStatus) Connected() bool {
	return !n.Airplane && (n.Wifi || n.Data)
}

// CurrentPackage returns the package of the foreground app.
func (a *Actions) CurrentPackage() (string, error) {
	pkg, err := a.remote.CurrentPackage()
	if err != nil {
		return "", a.remoteError("current package", err)
	}
	return pkg, nil
}

// CheckAppPermission reports whether the foreground app holds perm.
func (a *Actions) CheckAppPermission(perm string) (bool, error) {
	var granted bool
	err := a.withPackage(func(pm PackageManager, pkg string) error {
		var err error
		granted, err = pm.CheckPermission(pkg, perm)
		return err
	})
	return granted, err
}

// GrantAppPermission grants perm to the foreground app.
func (a *Actions) GrantAppPermission(perm string) error {
	return a.withPackage(func(pm PackageManager, pkg string) error {
		logger.Info("granting %s to %s", perm, pkg)
		return pm.GrantPermission(pkg, perm)
	})
}

// RevokeAppPermission revokes perm from the foreground app.
func (a *Actions) RevokeAppPermission(perm string) error {
	return a.withPackage(func(pm PackageManager, pkg string) error {
		logger.Info("revoking %s from %s", perm, pkg)
		return pm.RevokePermission(pkg, perm)
	})
}

// ClearAppCache clears all data of the foreground app.
func (a *Actions) ClearAppCache() error {
	return a.withPackage(func(pm PackageManager, pkg string) error {
		logger.Info("clearing data of %s", pkg)
		return pm.ClearData(pkg)
	})
}

// AppStoragePath returns the APK path of the foreground app.
func (a *Actions) AppStoragePath() (string, error) {
	var path string
	err := a.withPackage(func(pm PackageManager, pkg string) error {
		var err error
		path, err = pm.Path(pkg)
		return err
	})
	return path, err
}

func (a *Actions) withPackage(fn func(pm PackageManager, pkg string) error) error {
	if a.pm == nil {
		return core.ErrNoDeviceShell
	}
	pkg, err := a.CurrentPackage()
	if err != nil {
		return err
	}
	return fn(a.pm, pkg)
}

// DeviceInfo returns the driver's `mobile: deviceInfo` map.
func (a *Actions) DeviceInfo() (map[string]interface{}, error) {
	value, err := a.remote.ExecuteMobile("deviceInfo", nil)
	if err != nil {
		return nil, a.remoteError("device info", err)
	}
	info, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("device info: unexpected response %T", value)
	}
	return info, nil
}

// NetworkStatus returns the device network connection state.
func (a *Actions) NetworkStatus() (NetworkStatus, error) {
	mask, err := a.remote.NetworkConnection()
	if err != nil {
		return NetworkStatus{}, a.remoteError("network status", err)
	}
	return NetworkStatus{
		Mask:     mask,
		Airplane: mask&NetworkAirplane != 0,
		Wifi:     mask&NetworkWifi != 0,
		Data:     mask&NetworkData != 0,
	}, nil
}

// Alerts

// AcceptAlert accepts the open modal dialog.
func (a *Actions) AcceptAlert() error {
	return a.remoteError("accept alert", a.remote.AcceptAlert())
}

// DismissAlert dismisses the open modal dialog.
func (a *Actions) DismissAlert() error {
	return a.remoteError("dismiss alert", a.remote.DismissAlert())
}

// GetAlertText returns the text of the open modal dialog.
func (a *Actions) GetAlertText() (string, error) {
	text, err := a.remote.GetAlertText()
	if err != nil {
		return "", a.remoteError("alert text", err)
	}
	return text, nil
}

// Artifacts

// TakeScreenshot writes a PNG capture to dir/name, creating dir if needed,
// and returns the file path.
func (a *Actions) TakeScreenshot(dir, name string) (string, error) {
	data, err := a.remote.Screenshot()
	if err != nil {
		return "", a.remoteError("screenshot", err)
	}
	return writeArtifact(dir, name, data)
}

// SaveHierarchy writes the current page source XML to dir/name.
func (a *Actions) SaveHierarchy(dir, name string) (string, error) {
	source, err := a.remote.Source()
	if err != nil {
		return "", a.remoteError("page source", err)
	}
	return writeArtifact(dir, name, []byte(source))
}

func writeArtifact(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	logger.Info("saved %s", path)
	return path, nil
}
