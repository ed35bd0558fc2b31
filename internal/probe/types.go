package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wssmoke/internal/logging"
)

// DefaultTimeout bounds a probe that does not set its own timeout.
const DefaultTimeout = 4 * time.Second

var (
	// ErrTimeout marks a probe that did not reach a terminal state in time.
	ErrTimeout = errors.New("probe timed out")
	// ErrClosed marks a connection closed by the peer before success.
	ErrClosed = errors.New("connection closed")
	// ErrRunInProgress is returned when a harness is invoked re-entrantly.
	ErrRunInProgress = errors.New("probe run already in progress")
)

// MessageKind distinguishes text from binary frames.
type MessageKind uint8

const (
	KindText MessageKind = iota + 1
	KindBinary
)

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is one inbound or outbound WebSocket data message.
type Message struct {
	Kind MessageKind
	Data []byte
}

// TextMessage builds a text message.
func TextMessage(s string) Message { return Message{Kind: KindText, Data: []byte(s)} }

// BinaryMessage builds a binary message.
func BinaryMessage(b []byte) Message { return Message{Kind: KindBinary, Data: b} }

// Text returns the payload as a string.
func (m Message) Text() string { return string(m.Data) }

// Detail renders the message for the journal.
func (m Message) Detail() logging.Detail {
	if m.Kind == KindText {
		return logging.Text(m.Text())
	}
	return logging.Binary(m.Data)
}

// Sender writes messages on an open connection.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Conn is the client side of one probe connection.
type Conn interface {
	Sender
	// Read blocks for the next data message. A close by the peer is reported
	// as *CloseError.
	Read(ctx context.Context) (Message, error)
	Close() error
}

// Dialer opens probe connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Action runs once when the connection opens.
type Action func(ctx context.Context, s Sender) error

// Predicate decides whether a message proves the endpoint works.
type Predicate func(Message) (bool, error)

// Probe describes one connectivity test. A nil Expect accepts the first
// message received.
type Probe struct {
	Name    string
	URL     string
	OnOpen  Action
	Expect  Predicate
	Timeout time.Duration
	// Linger delays success after a match so late messages are observed.
	Linger time.Duration
}

func (p Probe) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// Outcome is the immutable result of executing one probe.
type Outcome struct {
	Name    string
	OK      bool
	Elapsed time.Duration
	Err     error
}

// CloseError reports a close frame received from the peer.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("closed with status %d", e.Code)
	}
	return fmt.Sprintf("closed with status %d: %s", e.Code, e.Reason)
}

// Is lets errors.Is(err, ErrClosed) match any close.
func (e *CloseError) Is(target error) bool {
	return target == ErrClosed
}

// ProbeError wraps the cause of a failed probe with where it happened.
type ProbeError struct {
	Probe string
	State State
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s failed while %s: %v", e.Probe, e.State, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
