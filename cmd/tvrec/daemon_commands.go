package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tvrec/internal/config"
	"tvrec/internal/daemonctl"
	"tvrec/internal/ipc"
	"tvrec/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tvrec daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the configured log level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the tvrec daemon and every active recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed unresponsive daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, recorder and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			printSection(stdout, "System Status", colorize, systemLines(cmd.Context(), cfg, snap.Daemon, colorize))
			fmt.Fprintln(stdout)
			printSection(stdout, "Checks", colorize, checkLines(snap.Checks, colorize))
			fmt.Fprintln(stdout)
			printSection(stdout, "Dependencies", colorize, dependencyLines(snap.Dependencies, colorize))
			fmt.Fprintln(stdout)
			printSection(stdout, "Recorders", colorize, nil)
			if snap.Daemon == nil || len(snap.Daemon.Recorders) == 0 {
				fmt.Fprintln(stdout, "No recorders registered")
				return nil
			}
			fmt.Fprint(stdout, recordersTable(snap.Daemon.Recorders, colorize))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func systemLines(ctx context.Context, cfg *config.Config, status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 6)
	if status == nil || !status.Running {
		lines = append(lines, renderStatusLine("tvrecd", statusWarn, "Not running (run `tvrec start`)", colorize))
	} else {
		lines = append(lines, renderStatusLine("tvrecd", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		lines = append(lines, renderStatusLine("Devices", statusInfo,
			fmt.Sprintf("%d network, %d local", status.NetworkDevices, status.LocalDevices), colorize))

		discovery := "Never"
		if !status.LastDiscovery.IsZero() {
			discovery = status.LastDiscovery.Local().Format(time.DateTime)
		}
		if len(status.DiscoveryErrors) > 0 {
			lines = append(lines, renderStatusLine("Discovery", statusWarn,
				fmt.Sprintf("%s (%s)", discovery, strings.Join(status.DiscoveryErrors, "; ")), colorize))
		} else {
			lines = append(lines, renderStatusLine("Discovery", statusOK, discovery, colorize))
		}

		if status.HotplugActive {
			lines = append(lines, renderStatusLine("Hotplug", statusOK, "udev monitoring active", colorize))
		} else {
			lines = append(lines, renderStatusLine("Hotplug", statusInfo, "Inactive", colorize))
		}
		if status.Reschedules > 0 {
			lines = append(lines, renderStatusLine("Reschedules", statusInfo, fmt.Sprintf("%d requested", status.Reschedules), colorize))
		}
	}

	if cfg != nil {
		ntfy := preflight.CheckNtfyFromConfig(ctx, cfg)
		switch {
		case ntfy.Passed && ntfy.Detail == "Disabled":
			lines = append(lines, renderStatusLine("Notifications", statusInfo, "Not configured", colorize))
		case ntfy.Passed:
			lines = append(lines, renderStatusLine("Notifications", statusOK, ntfy.Detail, colorize))
		default:
			lines = append(lines, renderStatusLine("Notifications", statusWarn, ntfy.Detail, colorize))
		}
	}
	return lines
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+2)
	lines = append(lines, dependencySummaryLine(deps, colorize))
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(daemonctl.Severity(dep)), detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func dependencySummaryLine(deps []ipc.DependencyStatus, colorize bool) string {
	if len(deps) == 0 {
		return renderStatusLine("Summary", statusInfo, "No dependency checks configured", colorize)
	}
	var missingRequired, missingOptional int
	for _, dep := range deps {
		switch {
		case dep.Available:
		case dep.Optional:
			missingOptional++
		default:
			missingRequired++
		}
	}
	available := len(deps) - missingRequired - missingOptional
	kind := statusOK
	detail := fmt.Sprintf("%d/%d available", available, len(deps))
	if missingRequired+missingOptional > 0 {
		detail = fmt.Sprintf("%s (missing: %d required, %d optional)", detail, missingRequired, missingOptional)
		kind = statusWarn
		if missingRequired > 0 {
			kind = statusError
		}
	}
	return renderStatusLine("Summary", kind, detail, colorize)
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: logLevel}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	opts.ConfigPath = ctx.configPath()
	return opts
}
