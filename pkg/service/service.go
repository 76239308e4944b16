// Package service manages the cmdhubd systemd user service unit.
package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/modoterra/cmdhub/pkg/client"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

// UnitName is the name of the user unit.
const UnitName = "cmdhubd.service"

// UnitContents returns the systemd unit file contents for the given binary
// and optional config path. The hub reports readiness with sd_notify.
func UnitContents(binaryPath, configPath string) string {
	cmdline := binaryPath
	if configPath != "" {
		cmdline += " --config " + configPath
	}
	return fmt.Sprintf(`[Unit]
Description=cmdhub aggregation hub for Redis MONITOR streams
Documentation=https://github.com/modoterra/cmdhub

[Service]
Type=notify
ExecStart=%s
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`, cmdline)
}

// UnitPath returns the path to the systemd user unit file.
func UnitPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	return filepath.Join(configDir, "systemd", "user", UnitName), nil
}

// BinaryPath resolves cmdhubd in PATH.
func BinaryPath() (string, error) {
	p, err := exec.LookPath("cmdhubd")
	if err != nil {
		return "", fmt.Errorf("cmdhubd not found in PATH: %w", err)
	}
	return filepath.Abs(p)
}

// Install writes the unit file, reloads the user manager and enables and
// starts the service.
func Install(ctx context.Context, binaryPath, configPath string) error {
	unitPath, err := UnitPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	if configPath != "" {
		if configPath, err = filepath.Abs(configPath); err != nil {
			return err
		}
	}
	contents := UnitContents(binaryPath, configPath)
	if err := os.WriteFile(unitPath, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("cannot write unit file: %w", err)
	}

	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unitPath}, false, true); err != nil {
		return fmt.Errorf("enable %s: %w", UnitName, err)
	}
	return waitJob(ctx, func(ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, UnitName, "replace", ch)
	})
}

// Uninstall stops and disables the service, removes the unit file and
// reloads the user manager.
func Uninstall(ctx context.Context) error {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	// Best-effort stop and disable; the unit may not be running.
	_ = waitJob(ctx, func(ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, UnitName, "replace", ch)
	})
	_, _ = conn.DisableUnitFilesContext(ctx, []string{UnitName}, false)

	unitPath, err := UnitPath()
	if err != nil {
		return err
	}
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove unit file: %w", err)
	}
	return conn.ReloadContext(ctx)
}

func waitJob(ctx context.Context, start func(chan<- string) (int, error)) error {
	ch := make(chan string, 1)
	if _, err := start(ch); err != nil {
		return err
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("systemd job %s", result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a human-readable status of the hub and its unit.
func Status(ctx context.Context, control wire.Endpoint) string {
	var lines []string

	if err := client.Probe(ctx, control); err == nil {
		lines = append(lines, "hub: active ("+control.String()+")")
	} else {
		lines = append(lines, "hub: inactive ("+control.String()+")")
	}

	unitPath, err := UnitPath()
	if err == nil {
		if _, statErr := os.Stat(unitPath); statErr == nil {
			lines = append(lines, "systemd user service: "+unitState(ctx))
		} else {
			lines = append(lines, "systemd user service: not installed")
		}
	}

	return strings.Join(lines, "\n")
}

func unitState(ctx context.Context) string {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return "unknown"
	}
	defer conn.Close()

	units, err := conn.ListUnitsByNamesContext(ctx, []string{UnitName})
	if err != nil || len(units) == 0 {
		return "unknown"
	}
	u := units[0]
	return u.ActiveState + " (" + u.SubState + ")"
}
