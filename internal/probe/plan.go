package probe

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"wssmoke/internal/config"
)

// DefaultPlan is the echo, ping, demo sequence against base (e.g. ws://host:port).
func DefaultPlan(base string) []Probe {
	base = strings.TrimRight(base, "/")
	return []Probe{
		{
			Name:    "ws-echo",
			URL:     base + "/ws-echo",
			OnOpen:  Send(BinaryMessage([]byte{1, 2, 3, 4})),
			Expect:  AnyMessage,
			Timeout: 4 * time.Second,
			Linger:  50 * time.Millisecond,
		},
		{
			Name:    "ws-ping",
			URL:     base + "/ws-ping",
			Expect:  TextContainsFold("pong"),
			Timeout: 6 * time.Second,
		},
		{
			Name:    "web-demo",
			URL:     base + "/web-demo/ws",
			Expect:  AnyMessage,
			Timeout: 4 * time.Second,
		},
	}
}

// PlanFromSpecs builds probes from configuration, resolving paths against base.
func PlanFromSpecs(base string, specs []config.ProbeSpec) ([]Probe, error) {
	base = strings.TrimRight(base, "/")
	probes := make([]Probe, 0, len(specs))
	for _, spec := range specs {
		expect, err := CompileExpect(spec.Expect)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", spec.Name, err)
		}
		p := Probe{
			Name:    spec.Name,
			URL:     base + spec.Path,
			Expect:  expect,
			Timeout: spec.Timeout,
			Linger:  spec.Linger,
		}
		if spec.Send != nil {
			msg, err := sendMessage(*spec.Send)
			if err != nil {
				return nil, fmt.Errorf("probe %s: %w", spec.Name, err)
			}
			p.OnOpen = Send(msg)
		}
		probes = append(probes, p)
	}
	return probes, nil
}

func sendMessage(spec config.SendSpec) (Message, error) {
	switch spec.Kind {
	case "text":
		return TextMessage(spec.Data), nil
	case "binary":
		data, err := hex.DecodeString(strings.ReplaceAll(spec.Data, " ", ""))
		if err != nil {
			return Message{}, fmt.Errorf("decode binary send data: %w", err)
		}
		return BinaryMessage(data), nil
	default:
		return Message{}, fmt.Errorf("unknown send kind %q", spec.Kind)
	}
}
