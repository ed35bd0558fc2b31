package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wssmoke/internal/logging"
)

// State is a step of the per-probe state machine.
type State uint8

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateAwaiting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateAwaiting:
		return "awaiting-success"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

type readEvent struct {
	msg Message
	err error
}

// execution holds the mutable state of one probe run. It is confined to the
// goroutine calling Execute; the reader goroutine only feeds events.
type execution struct {
	probe   Probe
	journal *logging.Journal
	started time.Time
	state   State
	conn    Conn
	outcome Outcome
}

// Execute runs p to a terminal state and returns its outcome. The timeout
// covers dialing, the open action, waiting for a match and lingering.
func Execute(ctx context.Context, p Probe, dialer Dialer, journal *logging.Journal) Outcome {
	if journal == nil {
		journal = logging.NewJournal(nil)
	}
	x := &execution{probe: p, journal: journal, started: time.Now()}
	return x.run(ctx, dialer)
}

func (x *execution) run(parent context.Context, dialer Dialer) Outcome {
	timeout := x.probe.timeout()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	x.journal.Info(fmt.Sprintf("[try] %s -> %s", x.probe.Name, x.probe.URL), logging.None())
	x.transition(StateConnecting, "dial")

	conn, err := dialer.Dial(ctx, x.probe.URL)
	if err != nil {
		return x.fail(x.cause(ctx, err))
	}
	x.conn = conn

	x.transition(StateOpen, "open event")
	x.journal.Info("[open] "+x.probe.Name, logging.None())
	if x.probe.OnOpen != nil {
		if err := x.probe.OnOpen(ctx, conn); err != nil {
			return x.fail(x.cause(ctx, fmt.Errorf("open action: %w", err)))
		}
	}
	x.transition(StateAwaiting, "ready")

	readCtx, stopReader := context.WithCancel(ctx)
	defer stopReader()
	events := make(chan readEvent)
	go pump(readCtx, conn, events)

	var linger <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return x.fail(x.cause(ctx, ctx.Err()))
		case <-linger:
			return x.succeed("linger elapsed")
		case ev := <-events:
			if ev.err != nil {
				return x.fail(x.readFailure(ctx, ev.err))
			}
			x.journal.Info("[msg] "+x.probe.Name, ev.msg.Detail())
			if linger != nil {
				continue
			}
			ok, err := x.evaluate(ev.msg)
			if err != nil {
				return x.fail(fmt.Errorf("predicate: %w", err))
			}
			if !ok {
				continue
			}
			if x.probe.Linger <= 0 {
				return x.succeed("predicate matched")
			}
			x.log(fmt.Sprintf("matched, lingering %dms", x.probe.Linger.Milliseconds()))
			timer := time.NewTimer(x.probe.Linger)
			defer timer.Stop()
			linger = timer.C
		}
	}
}

func pump(ctx context.Context, conn Conn, events chan<- readEvent) {
	for {
		msg, err := conn.Read(ctx)
		select {
		case events <- readEvent{msg: msg, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (x *execution) evaluate(msg Message) (bool, error) {
	if x.probe.Expect == nil {
		return true, nil
	}
	return x.probe.Expect(msg)
}

// cause maps err to a timeout when the probe deadline is what stopped it.
func (x *execution) cause(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %dms", ErrTimeout, x.probe.timeout().Milliseconds())
	}
	return err
}

func (x *execution) readFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return x.cause(ctx, ctx.Err())
	}
	var closeErr *CloseError
	if errors.As(err, &closeErr) {
		x.journal.Warn("[close] "+x.probe.Name, logging.Fields(
			slog.Int("code", closeErr.Code),
			slog.String("reason", closeErr.Reason),
		))
	}
	return err
}

func (x *execution) transition(next State, why string) {
	prev := x.state
	x.state = next
	x.log(fmt.Sprintf("%s -> %s: %s", prev, next, why))
}

func (x *execution) log(what string) {
	x.journal.Add(slog.LevelDebug,
		fmt.Sprintf("[state] %s %s (%dms)", x.probe.Name, what, x.elapsed().Milliseconds()),
		logging.None())
}

func (x *execution) elapsed() time.Duration {
	return time.Since(x.started)
}

func (x *execution) succeed(why string) Outcome {
	return x.finish(true, why, nil)
}

func (x *execution) fail(err error) Outcome {
	return x.finish(false, "", err)
}

// finish performs the single terminal transition. Later calls return the
// recorded outcome unchanged.
func (x *execution) finish(ok bool, why string, err error) Outcome {
	if x.state.Terminal() {
		return x.outcome
	}
	from := x.state
	elapsed := x.elapsed()

	if ok {
		x.transition(StateSucceeded, why)
		x.journal.Info(fmt.Sprintf("[ok] %s in %dms", x.probe.Name, elapsed.Milliseconds()), logging.None())
	} else {
		err = &ProbeError{Probe: x.probe.Name, State: from, Err: err}
		x.transition(StateFailed, err.Error())
		x.journal.Error(fmt.Sprintf("[fail] %s in %dms", x.probe.Name, elapsed.Milliseconds()), logging.Err(err))
	}
	if x.conn != nil {
		_ = x.conn.Close()
	}

	x.outcome = Outcome{Name: x.probe.Name, OK: ok, Elapsed: elapsed, Err: err}
	return x.outcome
}
