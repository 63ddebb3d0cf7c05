package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/hostsim/sim"
	"github.com/inference-sim/hostsim/sim/level"
	"github.com/inference-sim/hostsim/sim/trace"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var runSettings = defaultSettings()

// runCmd plays levels headless and prints the verdicts
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a level without a UI and print the verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		sess, err := newSession(st)
		if err != nil {
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				logrus.Warnf("closing outcome sinks: %v", err)
			}
		}()

		if st.MetricsAddr != "" {
			stop := serveMetrics(st.MetricsAddr, sess.recorder.Handler())
			defer stop()
		}

		passed, err := runCampaign(sess, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if !passed {
			return errors.New("level failed")
		}
		return nil
	},
}

// runCampaign plays the current level, and with --campaign every following
// level while they pass. It reports whether the last level played passed.
func runCampaign(sess *session, w io.Writer) (bool, error) {
	for {
		lvl := sess.level()
		logrus.Infof("playing level %q (run %s)", lvl.Title, sess.runID)
		res, err := sess.play()
		if err != nil {
			return false, err
		}
		msg := sess.progression.RecordResult(res)
		printReport(w, lvl, res, sess.sim.SnapshotStats(), sess.trace, msg)

		if !res.Passed || !sess.settings.Campaign {
			return res.Passed, nil
		}
		more, err := sess.advance()
		if err != nil {
			return false, err
		}
		if !more {
			fmt.Fprintln(w, "Campaign complete.")
			return true, nil
		}
	}
}

func printReport(w io.Writer, lvl level.Level, res sim.LevelResults, stats sim.GameStats, tr *trace.SimulationTrace, msg string) {
	fmt.Fprintf(w, "=== %s ===\n", lvl.Title)
	fmt.Fprintln(w, res.String())
	fmt.Fprintf(w, "handled: %d, dropped: %d\n", stats.HandledRequests, stats.DroppedRequests)
	if d := stats.Distribution(); d.Count > 0 {
		fmt.Fprintf(w, "response time: mean %.2fs, p50 %.2fs, p95 %.2fs, max %.2fs\n", d.Mean, d.P50, d.P95, d.Max)
	}
	if tr != nil {
		summary := trace.Summarize(tr)
		fmt.Fprintf(w, "routing: %d decisions (%d forwards), %d targets, mean distance %.1f\n",
			summary.TotalDecisions, summary.Forwards, summary.UniqueTargets, summary.MeanDistance)
		if len(summary.DropsByReason) > 0 {
			reasons := make([]string, 0, len(summary.DropsByReason))
			for r := range summary.DropsByReason {
				reasons = append(reasons, r)
			}
			sort.Strings(reasons)
			for _, r := range reasons {
				fmt.Fprintf(w, "  dropped (%s): %d\n", r, summary.DropsByReason[r])
			}
		}
	}
	if msg != "" {
		fmt.Fprintln(w, msg)
	}
}

// serveMetrics exposes the Prometheus handler until the returned func is called.
func serveMetrics(addr string, handler http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		logrus.Infof("serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server failed: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logrus.Warnf("metrics server shutdown: %v", err)
		}
	}
}

func init() {
	addSettingsFlags(runCmd.Flags(), &runSettings)
	rootCmd.AddCommand(runCmd)
}
