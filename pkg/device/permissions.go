package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
)

// Shell runs a command in the device shell. *AndroidDevice implements it.
type Shell interface {
	Shell(cmd string) (string, error)
}

// shellSafeName matches package and permission names that can be passed to
// the device shell unquoted.
var shellSafeName = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// PackageManager issues `pm` commands for app packages over a device shell.
type PackageManager struct {
	shell Shell
}

// NewPackageManager returns a PackageManager bound to shell.
func NewPackageManager(shell Shell) *PackageManager {
	return &PackageManager{shell: shell}
}

// CheckPermission reports whether perm is granted to pkg for user 0.
func (p *PackageManager) CheckPermission(pkg, perm string) (bool, error) {
	if err := checkNames("package", pkg, "permission", perm); err != nil {
		return false, err
	}
	out, err := p.run(fmt.Sprintf("pm check-permission -u 0 %s %s", perm, pkg))
	if err != nil {
		return false, err
	}
	return permissionGranted(out), nil
}

// GrantPermission grants a runtime permission to pkg.
func (p *PackageManager) GrantPermission(pkg, perm string) error {
	if err := checkNames("package", pkg, "permission", perm); err != nil {
		return err
	}
	_, err := p.run(fmt.Sprintf("pm grant %s %s", pkg, perm))
	return err
}

// RevokePermission revokes a runtime permission from pkg.
func (p *PackageManager) RevokePermission(pkg, perm string) error {
	if err := checkNames("package", pkg, "permission", perm); err != nil {
		return err
	}
	_, err := p.run(fmt.Sprintf("pm revoke %s %s", pkg, perm))
	return err
}

// ClearData deletes all data of pkg. pm must confirm with "Success".
func (p *PackageManager) ClearData(pkg string) error {
	if err := checkNames("package", pkg); err != nil {
		return err
	}
	cmd := "pm clear " + pkg
	out, err := p.run(cmd)
	if err != nil {
		return err
	}
	if !strings.Contains(out, "Success") {
		return commandFailed(cmd, out, nil)
	}
	return nil
}

// Path returns the APK path of pkg on the device.
func (p *PackageManager) Path(pkg string) (string, error) {
	if err := checkNames("package", pkg); err != nil {
		return "", err
	}
	cmd := "pm path " + pkg
	out, err := p.run(cmd)
	if err != nil {
		return "", err
	}
	// split APKs print one line per APK; the base APK comes first
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	if !strings.HasPrefix(line, "package:") {
		return "", commandFailed(cmd, out, nil)
	}
	return strings.TrimPrefix(line, "package:"), nil
}

func (p *PackageManager) run(cmd string) (string, error) {
	if p == nil || p.shell == nil {
		return "", core.ErrNoDeviceShell.WithDetails(map[string]interface{}{"command": cmd})
	}

	logger.Debug("adb shell %s", cmd)
	out, err := p.shell.Shell(cmd)
	if err != nil {
		return "", commandFailed(cmd, out, err)
	}
	if failureOutput(out) {
		return "", commandFailed(cmd, out, nil)
	}
	return out, nil
}

// checkNames takes kind/value pairs and rejects any value the shell could
// interpret as more than a single word.
func checkNames(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		kind, value := pairs[i], pairs[i+1]
		if !shellSafeName.MatchString(value) {
			return core.ErrInvalidConfig.
				WithMessage(fmt.Sprintf("invalid %s name %q", kind, value)).
				WithDetails(map[string]interface{}{kind: value})
		}
	}
	return nil
}

// failureOutput reports whether pm printed an error even though the shell exited zero.
func failureOutput(out string) bool {
	return strings.Contains(out, "Exception") ||
		strings.Contains(out, "Error:") ||
		strings.HasPrefix(strings.TrimSpace(out), "Failure")
}

func permissionGranted(out string) bool {
	out = strings.ToLower(out)
	if strings.Contains(out, "not granted") || strings.Contains(out, "denied") {
		return false
	}
	return strings.Contains(out, "granted")
}

func commandFailed(cmd, out string, cause error) error {
	e := core.ErrDeviceCommandFailed.
		WithMessage(fmt.Sprintf("device command failed: %s", cmd)).
		WithDetails(map[string]interface{}{"command": cmd, "output": strings.TrimSpace(out)})
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}
