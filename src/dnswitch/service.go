// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// ServiceController is the narrow interface through which the core
// drives the OS resolver machinery. Manager only needs three verbs;
// anything richer stays outside the core.
type ServiceController interface {
	// RestartResolver restarts the system resolver service
	// (systemd-resolved) after its configuration changed.
	RestartResolver(ctx context.Context) error

	// RestartNetworkManager restarts the network manager so it
	// regenerates the default resolver configuration after a reset.
	RestartNetworkManager(ctx context.Context) error

	// FlushCaches clears system DNS caches. Best-effort: failures are
	// swallowed, stale caches are an inconvenience, not a correctness
	// problem.
	FlushCaches(ctx context.Context)
}

// Service restart timing.
const (
	stopTimeout  = 10 * time.Second
	startTimeout = 15 * time.Second
	settleDelay  = time.Second
)

// SystemdController drives services through systemctl. Restarts are
// performed as stop, settle, start rather than a bare restart so a hung
// unit cannot wedge the switch.
type SystemdController struct {
	log zerolog.Logger
}

// NewSystemdController creates a [ServiceController] backed by systemctl.
func NewSystemdController(log zerolog.Logger) *SystemdController {
	return &SystemdController{log: log}
}

// RestartResolver restarts systemd-resolved.
func (c *SystemdController) RestartResolver(ctx context.Context) error {
	return c.restart(ctx, "systemd-resolved")
}

// RestartNetworkManager restarts NetworkManager.
func (c *SystemdController) RestartNetworkManager(ctx context.Context) error {
	return c.restart(ctx, "NetworkManager")
}

// FlushCaches tries each known cache-flush command in turn.
func (c *SystemdController) FlushCaches(ctx context.Context) {
	commands := [][]string{
		{"resolvectl", "flush-caches"},
		{"systemd-resolve", "--flush-caches"},
		{"service", "nscd", "restart"},
	}
	for _, argv := range commands {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if err := cmd.Run(); err == nil {
			c.log.Debug().Str("command", argv[0]).Msg("flushed DNS caches")
			return
		}
	}
	c.log.Debug().Msg("no cache-flush command succeeded")
}

func (c *SystemdController) restart(ctx context.Context, unit string) error {
	c.log.Info().Str("unit", unit).Msg("restarting service")

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	// A failed stop is fine: the unit may not be running yet.
	_ = exec.CommandContext(stopCtx, "systemctl", "stop", unit).Run()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleDelay):
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := exec.CommandContext(startCtx, "systemctl", "start", unit).Run(); err != nil {
		return fmt.Errorf("dnswitch: start %s: %w", unit, err)
	}
	return nil
}

// NopController is a [ServiceController] that does nothing. Used in
// tests and on hosts without systemd.
type NopController struct{}

// RestartResolver does nothing.
func (NopController) RestartResolver(ctx context.Context) error { return nil }

// RestartNetworkManager does nothing.
func (NopController) RestartNetworkManager(ctx context.Context) error { return nil }

// FlushCaches does nothing.
func (NopController) FlushCaches(ctx context.Context) {}
