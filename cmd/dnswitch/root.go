// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rizalgns/dnswitch/src/dnswitch"
)

// CLI defaults: log destination, backup retention and timeouts.
const (
	defaultLogPath    = "/var/log/dnswitch/dnswitch.log"
	defaultBackupAge  = 7 * 24 * time.Hour
	benchmarkTimeout  = 2 * time.Second
	operationDeadline = 2 * time.Minute
)

// app carries the flags and lazily built collaborators shared by all
// subcommands.
type app struct {
	log       zerolog.Logger
	providers []dnswitch.Provider

	providersFile string
	logFile       string
	verbose       bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "dnswitch",
		Short:         "Switch, protect and verify the host DNS configuration",
		Long: `dnswitch switches the host's DNS resolution between registered providers,
optionally with DNS-over-TLS, seals the result with the immutable file
attribute, and verifies it with benchmarks and leak checks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.providersFile, "providers", "", "YAML file overriding the built-in provider registry")
	pf.StringVar(&a.logFile, "log-file", defaultLogPath, "structured log file (best-effort)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug events")

	root.AddCommand(
		a.switchCmd(),
		a.statusCmd(),
		a.benchmarkCmd(),
		a.testCmd(),
		a.resetCmd(),
		a.restoreCmd(),
		a.providersCmd(),
	)
	return root
}

// setup wires logging and loads the provider registry.
func (a *app) setup() error {
	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}}
	if a.logFile != "" {
		if err := os.MkdirAll(filepath.Dir(a.logFile), 0o755); err == nil {
			if f, err := os.OpenFile(a.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
				writers = append(writers, f)
			}
		}
		// A log file we cannot open must not block the operation.
	}

	level := zerolog.InfoLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.log = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()

	if a.providersFile != "" {
		providers, err := dnswitch.LoadProviders(a.providersFile)
		if err != nil {
			return err
		}
		a.providers = providers
	} else {
		a.providers = dnswitch.DefaultProviders()
	}
	return nil
}

// manager builds the production Manager and runs startup backup hygiene.
func (a *app) manager() *dnswitch.Manager {
	m := dnswitch.NewManager(dnswitch.WithManagerLogger(a.log))
	if pruned, err := m.Backups().Prune(defaultBackupAge); err == nil && pruned > 0 {
		a.log.Info().Int("pruned", pruned).Msg("cleaned up old backups")
	}
	return m
}

func (a *app) switchCmd() *cobra.Command {
	var enableDoT bool

	cmd := &cobra.Command{
		Use:   "switch <provider>",
		Short: "Switch the host to a registered DNS provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dnswitch.RequireRoot(); err != nil {
				return reportErr(err)
			}
			p, err := dnswitch.Lookup(a.providers, args[0])
			if err != nil {
				return reportErr(err)
			}

			ctx, cancel := contextWithDeadline(cmd)
			defer cancel()

			result, err := a.manager().Switch(ctx, p, enableDoT)
			if err != nil {
				return reportErr(err)
			}
			if result.NoOp {
				fmt.Printf("[i] %s is already active, nothing to do\n", p.Name)
				return nil
			}

			fmt.Printf("[+] Switched to %s (%s)\n", p.Name, joinOr(result.Nameservers, "no nameservers"))
			if result.DoTEnabled {
				fmt.Printf("[+] DNS-over-TLS enabled via %s\n", p.DoTHostname)
			}
			if !result.Locked {
				fmt.Println("[!] Configuration is NOT locked against overwrites")
			}
			if !result.Verified {
				fmt.Println("[!] Post-switch verification failed, check the log")
			}

			// Mirror the switch with a leak check so a silently wrong
			// path is caught immediately.
			report, err := dnswitch.NewLeakDetector(dnswitch.WithLeakLogger(a.log)).Check(ctx, p, enableDoT)
			if err != nil {
				fmt.Printf("[!] Leak check could not run: %v\n", err)
				return nil
			}
			printLeakReport(report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&enableDoT, "dot", false, "enable DNS-over-TLS")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current DNS configuration state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, nameservers, err := dnswitch.NewManager(dnswitch.WithManagerLogger(a.log)).Status()
			if err != nil {
				return reportErr(err)
			}

			active := "none (DHCP / OS default)"
			if state.ActiveProviderID != "" {
				active = state.ActiveProviderID
				if p, err := dnswitch.Lookup(a.providers, state.ActiveProviderID); err == nil {
					active = fmt.Sprintf("%s (%s)", p.Name, p.ID)
				}
			}

			fmt.Printf("Active provider : %s\n", active)
			fmt.Printf("DNS-over-TLS    : %s\n", onOff(state.DoTEnabled))
			fmt.Printf("Config locked   : %s\n", onOff(state.Locked))
			fmt.Printf("Nameservers     : %s\n", joinOr(nameservers, "none"))
			if !state.LastSwitchAt.IsZero() {
				fmt.Printf("Last switch     : %s\n", state.LastSwitchAt.Format(time.RFC3339))
			}
			if state.LastBackup != "" {
				fmt.Printf("Last backup     : %s\n", state.LastBackup)
			}
			return nil
		},
	}
}

func (a *app) benchmarkCmd() *cobra.Command {
	var (
		samples int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Benchmark all registered providers and rank them by latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := contextWithDeadline(cmd)
			defer cancel()

			engine := dnswitch.NewProbeEngine(
				dnswitch.WithProbeTimeout(benchmarkTimeout),
				dnswitch.WithProbeLogger(a.log),
			)
			bench := dnswitch.NewBenchmarker(engine,
				dnswitch.WithSamples(samples),
				dnswitch.WithBenchmarkLogger(a.log),
			)

			fmt.Println("[*] Benchmarking DNS providers (lower is better)...")
			scores, err := bench.Run(ctx, a.providers, nil)
			if err != nil {
				return reportErr(err)
			}

			for i, s := range scores {
				if s.Unreliable {
					fmt.Printf("%2d. %-24s unreliable (%.0f%% success)\n",
						i+1, s.Provider.Name, s.SuccessRate*100)
					continue
				}
				fmt.Printf("%2d. %-24s %8.2f ms  (%.0f%% success)\n",
					i+1, s.Provider.Name, millis(s.Median), s.SuccessRate*100)
			}
			if len(scores) > 0 && !scores[0].Unreliable {
				fmt.Printf("\n[i] Fastest: %s (%.2f ms)\n", scores[0].Provider.Name, millis(scores[0].Median))
			}

			if output != "" {
				if err := writeBenchmarkReport(output, scores); err != nil {
					return reportErr(err)
				}
				fmt.Printf("[+] Report written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 3, "probes per provider and domain")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write an .xlsx report to this path")
	return cmd
}

func (a *app) testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that resolution really flows through the active provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, _, err := dnswitch.NewManager(dnswitch.WithManagerLogger(a.log)).Status()
			if err != nil {
				return reportErr(err)
			}
			if state.ActiveProviderID == "" {
				return reportErr(fmt.Errorf("no active provider configured; run 'dnswitch switch' first"))
			}
			p, err := dnswitch.Lookup(a.providers, state.ActiveProviderID)
			if err != nil {
				return reportErr(err)
			}

			ctx, cancel := contextWithDeadline(cmd)
			defer cancel()

			report, err := dnswitch.NewLeakDetector(dnswitch.WithLeakLogger(a.log)).Check(ctx, p, state.DoTEnabled)
			if err != nil {
				return reportErr(err)
			}
			printLeakReport(report)
			return nil
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the OS default (DHCP) DNS configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dnswitch.RequireRoot(); err != nil {
				return reportErr(err)
			}

			ctx, cancel := contextWithDeadline(cmd)
			defer cancel()

			result, err := a.manager().Reset(ctx)
			if err != nil {
				return reportErr(err)
			}
			if result.NoOp {
				fmt.Println("[i] Already on the OS default configuration")
				return nil
			}
			fmt.Println("[+] DNS configuration restored to OS default (DHCP)")
			return nil
		},
	}
}

func (a *app) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Roll the live configuration back to the most recent backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dnswitch.RequireRoot(); err != nil {
				return reportErr(err)
			}

			m := dnswitch.NewManager(dnswitch.WithManagerLogger(a.log))
			records, err := m.Backups().List()
			if err != nil {
				return reportErr(err)
			}
			if len(records) == 0 {
				return reportErr(fmt.Errorf("no backups available"))
			}
			latest := records[len(records)-1]

			ctx, cancel := contextWithDeadline(cmd)
			defer cancel()

			result, err := m.Restore(ctx, latest)
			if err != nil {
				return reportErr(err)
			}
			fmt.Printf("[+] Restored backup from %s (%s)\n",
				latest.CreatedAt.Format(time.RFC3339), joinOr(result.Nameservers, "no nameservers"))
			return nil
		},
	}
}

func (a *app) providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the registered DNS providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range a.providers {
				dot := ""
				if p.SupportsDoT {
					dot = fmt.Sprintf("  DoT: %s", p.DoTHostname)
				}
				fmt.Printf("%-14s %-24s %s%s\n", p.ID, p.Name, joinOr(p.Addresses(), "-"), dot)
			}
			return nil
		},
	}
}

func printLeakReport(report dnswitch.LeakReport) {
	for _, r := range report.Results {
		if r.Success {
			fmt.Printf("[✓] Resolve %-16s OK via %s\n", r.Domain, r.Server)
		} else {
			fmt.Printf("[✗] Resolve %-16s FAILED (%v)\n", r.Domain, r.Err)
		}
	}
	if report.Leaked {
		fmt.Printf("[!] DNS LEAK: expected %v, observed %v\n", report.Expected, report.Observed)
	} else {
		fmt.Println("[✓] No DNS leak detected")
	}
}

func contextWithDeadline(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), operationDeadline)
}

func reportErr(err error) error {
	fmt.Fprintf(os.Stderr, "[!] %v\n", err)
	return err
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
