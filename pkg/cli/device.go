package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appui-runner/pkg/device"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
	"github.com/devicelab-dev/appui-runner/pkg/logger"
	"github.com/devicelab-dev/appui-runner/pkg/scenario"
)

var permissionCommand = &cli.Command{
	Name:  "permission",
	Usage: "Check, grant or revoke a runtime permission of the foreground app",
	Description: `The target package is the app in the foreground of the session,
as reported by the driver. Requires adb access to the device.

Examples:
  appui-runner permission check android.permission.CAMERA
  appui-runner permission revoke android.permission.ACCESS_FINE_LOCATION`,
	Subcommands: []*cli.Command{
		{
			Name:      "check",
			Usage:     "Print whether the permission is granted",
			ArgsUsage: "<permission>",
			Action:    checkPermission,
		},
		{
			Name:      "grant",
			Usage:     "Grant the permission",
			ArgsUsage: "<permission>",
			Action:    grantPermission,
		},
		{
			Name:      "revoke",
			Usage:     "Revoke the permission",
			ArgsUsage: "<permission>",
			Action:    revokePermission,
		},
	},
}

var appCommand = &cli.Command{
	Name:  "app",
	Usage: "Manage data of the foreground app",
	Subcommands: []*cli.Command{
		{
			Name:   "clear",
			Usage:  "Clear the app's data and cache",
			Action: clearApp,
		},
		{
			Name:   "path",
			Usage:  "Print the installed APK path",
			Action: appPath,
		},
	},
}

var devicesCommand = &cli.Command{
	Name:   "devices",
	Usage:  "List devices visible to adb with their build properties",
	Action: listDevices,
}

// adb access, replaced in tests.
var (
	adbDevices    = device.ListDevices
	adbDeviceInfo = func(serial string) (device.DeviceInfo, error) {
		d, err := device.New(serial)
		if err != nil {
			return device.DeviceInfo{}, err
		}
		return d.Info()
	}
)

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Print the elements on the current screen with a locator for each",
	Description: `Dump the page source of the current screen and print one line per
element with the locator appui-runner would use to address it. Useful
when filling in the locators section of config.yaml.

Examples:
  appui-runner inspect
  appui-runner inspect --all --save ./dumps`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Include elements that are not clickable",
		},
		&cli.StringFlag{
			Name:  "save",
			Usage: "Also write the raw page source into this directory",
		},
	},
	Action: inspectScreen,
}

func checkPermission(c *cli.Context) error {
	perm, err := firstArg(c, "permission")
	if err != nil {
		return err
	}
	return withSession(c, func(sess *scenario.Session) error {
		granted, err := sess.Actions.CheckAppPermission(perm)
		if err != nil {
			return err
		}
		state := "denied"
		if granted {
			state = "granted"
		}
		fmt.Fprintf(c.App.Writer, "%s: %s\n", perm, state)
		return nil
	})
}

func grantPermission(c *cli.Context) error {
	perm, err := firstArg(c, "permission")
	if err != nil {
		return err
	}
	return withSession(c, func(sess *scenario.Session) error {
		if err := sess.Actions.GrantAppPermission(perm); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: granted\n", perm)
		return nil
	})
}

func revokePermission(c *cli.Context) error {
	perm, err := firstArg(c, "permission")
	if err != nil {
		return err
	}
	return withSession(c, func(sess *scenario.Session) error {
		if err := sess.Actions.RevokeAppPermission(perm); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: revoked\n", perm)
		return nil
	})
}

func clearApp(c *cli.Context) error {
	return withSession(c, func(sess *scenario.Session) error {
		if err := sess.Actions.ClearAppCache(); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "app data cleared")
		return nil
	})
}

func appPath(c *cli.Context) error {
	return withSession(c, func(sess *scenario.Session) error {
		path, err := sess.Actions.AppStoragePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, path)
		return nil
	})
}

func listDevices(c *cli.Context) error {
	entries, err := adbDevices()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "no devices attached")
		return nil
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tSTATE\tMODEL\tBRAND\tANDROID\tSDK\tEMULATOR")
	for _, e := range entries {
		brand, release, sdk, emulator := "-", "-", "-", "-"
		// only ready devices answer getprop
		if e.State == "device" {
			info, err := adbDeviceInfo(e.Serial)
			if err != nil {
				logger.Warn("reading properties of %s: %v", e.Serial, err)
			} else {
				brand, release, sdk = orDash(info.Brand), orDash(info.Release), orDash(info.SDK)
				emulator = "no"
				if info.IsEmulator {
					emulator = "yes"
				}
				if info.Model != "" {
					e.Model = info.Model
				}
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", e.Serial, e.State, orDash(e.Model), brand, release, sdk, emulator)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func inspectScreen(c *cli.Context) error {
	return withSession(c, func(sess *scenario.Session) error {
		source, err := sess.Client.Source()
		if err != nil {
			return err
		}
		if dir := c.String("save"); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(dir, "source.xml")
			if err := os.WriteFile(path, []byte(source), 0o644); err != nil { //#nosec G306 -- page source is not secret
				return err
			}
			fmt.Fprintf(c.App.ErrWriter, "page source written to %s\n", path)
		}

		nodes, err := appium.ParseHierarchy(source)
		if err != nil {
			return err
		}
		if !c.Bool("all") {
			nodes = appium.FilterClickable(nodes)
		}
		return printNodes(c, nodes)
	})
}

func printNodes(c *cli.Context, nodes []*appium.Node) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCATOR\tTEXT\tBOUNDS")
	for _, n := range nodes {
		b := n.Bounds
		fmt.Fprintf(w, "%s\t%s\t[%d,%d][%d,%d]\n", n.Locator(), n.Text, b.X, b.Y, b.X+b.Width, b.Y+b.Height)
	}
	return w.Flush()
}
