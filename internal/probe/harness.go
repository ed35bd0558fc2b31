package probe

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"wssmoke/internal/logging"
)

// Journal markers written once per run.
const (
	MarkBegin   = "[smoke] begin"
	MarkAllPass = "[smoke] ALL PASS"
	MarkFail    = "[smoke] FAIL"
	MarkEnd     = "[smoke] end"
)

// Report summarises one harness run.
type Report struct {
	RunID    string
	Base     string
	Started  time.Time
	Elapsed  time.Duration
	Outcomes []Outcome
	Passed   bool
}

// Failed returns the outcome that stopped the run, if any.
func (r Report) Failed() (Outcome, bool) {
	for _, o := range r.Outcomes {
		if !o.OK {
			return o, true
		}
	}
	return Outcome{}, false
}

// Harness runs a fixed plan of probes in order.
type Harness struct {
	base    string
	probes  []Probe
	dialer  Dialer
	journal *logging.Journal

	running atomic.Bool
}

// NewHarness creates a harness. A nil dialer uses WSDialer; a nil journal
// gets a private one.
func NewHarness(base string, probes []Probe, dialer Dialer, journal *logging.Journal) *Harness {
	if dialer == nil {
		dialer = WSDialer{}
	}
	if journal == nil {
		journal = logging.NewJournal(nil)
	}
	return &Harness{
		base:    base,
		probes:  probes,
		dialer:  dialer,
		journal: journal,
	}
}

// Journal returns the log the harness appends to.
func (h *Harness) Journal() *logging.Journal {
	return h.journal
}

// Running reports whether a run is in progress.
func (h *Harness) Running() bool {
	return h.running.Load()
}

// Run executes every probe in order and stops at the first failure. The
// returned error is that failure's cause, or ErrRunInProgress when another
// run holds the harness; in that case nothing is executed or logged.
func (h *Harness) Run(ctx context.Context) (Report, error) {
	if !h.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer h.running.Store(false)

	report := Report{
		RunID:    uuid.NewString(),
		Base:     h.base,
		Started:  time.Now(),
		Outcomes: make([]Outcome, 0, len(h.probes)),
	}
	h.journal.Info(MarkBegin, logging.Fields(
		slog.String("base", h.base),
		slog.String("run", report.RunID),
	))

	var err error
	for _, p := range h.probes {
		outcome := Execute(ctx, p, h.dialer, h.journal)
		report.Outcomes = append(report.Outcomes, outcome)
		if !outcome.OK {
			err = outcome.Err
			break
		}
	}

	report.Passed = err == nil
	report.Elapsed = time.Since(report.Started)
	if report.Passed {
		h.journal.Info(MarkAllPass, logging.None())
	} else {
		h.journal.Error(MarkFail, logging.Err(err))
	}
	h.journal.Info(MarkEnd, logging.None())
	return report, err
}
