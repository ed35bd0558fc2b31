package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wssmoke/internal/config"
	"wssmoke/internal/logging"
	"wssmoke/internal/probe"
)

var (
	probeBase    string
	probePlan    string
	probeEvery   time.Duration
	probeVerbose bool
)

var errProbeFailed = errors.New("smoke test failed")

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run the probe sequence against a server",
	Long: `Connect to /ws-echo, /ws-ping and /web-demo/ws in order and stop at the
first failure. The base URL comes from --base, else BACKEND_ORIGIN with its
scheme swapped to ws/wss, else ws://localhost:$PORT.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if probeVerbose {
			logLevel = "debug"
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		base := probeBase
		if base == "" {
			base, err = config.WSBase(cfg.Client.BackendOrigin, cfg.Port)
			if err != nil {
				return err
			}
		}

		probes, err := buildPlan(cfg, base)
		if err != nil {
			return err
		}

		journal := logging.NewJournal(logger)
		harness := probe.NewHarness(base, probes, nil, journal)
		out := cmd.OutOrStdout()

		every := probeEvery
		if every == 0 {
			every = cfg.Client.Every
		}
		if every <= 0 {
			report, err := harness.Run(cmd.Context())
			printReport(out, report)
			if err != nil {
				return fmt.Errorf("%w: %v", errProbeFailed, err)
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sched := probe.NewScheduler(harness, every, func(report probe.Report, _ error) {
			printReport(out, report)
			// The journal is mirrored to the logger; keep memory flat between runs.
			journal.Clear()
		}, logger)
		sched.Start()
		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeBase, "base", "", "WebSocket base URL, e.g. ws://localhost:10000")
	probeCmd.Flags().StringVar(&probePlan, "plan", "", "YAML probe plan replacing the built-in sequence")
	probeCmd.Flags().DurationVar(&probeEvery, "every", 0, "repeat the sequence on this interval until interrupted")
	probeCmd.Flags().BoolVarP(&probeVerbose, "verbose", "v", false, "log state transitions (same as --log-level debug)")
	rootCmd.AddCommand(probeCmd)
}

func buildPlan(cfg config.Config, base string) ([]probe.Probe, error) {
	specs := cfg.Client.Probes
	if probePlan != "" {
		loaded, err := config.LoadPlan(probePlan)
		if err != nil {
			return nil, err
		}
		specs = loaded
	}
	if len(specs) == 0 {
		return probe.DefaultPlan(base), nil
	}
	return probe.PlanFromSpecs(base, specs)
}

func printReport(w io.Writer, report probe.Report) {
	status := "PASS"
	if !report.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(w, "run %s: %s (%d probe(s), %dms)\n", report.RunID, status, len(report.Outcomes), report.Elapsed.Milliseconds())
	for _, o := range report.Outcomes {
		line := fmt.Sprintf("  %-10s ok=%-5t %6dms", o.Name, o.OK, o.Elapsed.Milliseconds())
		if o.Err != nil {
			line += "  " + o.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
}
