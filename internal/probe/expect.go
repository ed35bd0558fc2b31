package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// TextContainsFold matches text messages containing sub, ignoring case.
func TextContainsFold(sub string) Predicate {
	sub = strings.ToLower(sub)
	return func(m Message) (bool, error) {
		return m.Kind == KindText && strings.Contains(strings.ToLower(m.Text()), sub), nil
	}
}

// AnyMessage matches every message.
func AnyMessage(Message) (bool, error) { return true, nil }

// exprEnv is what plan expressions can see of a message.
type exprEnv struct {
	Kind   string `expr:"kind"`
	Text   string `expr:"text"`
	Size   int    `expr:"size"`
	Binary bool   `expr:"binary"`
}

// CompileExpect compiles a boolean expr-lang expression over kind, text,
// size and binary. An empty expression accepts any message.
func CompileExpect(src string) (Predicate, error) {
	if strings.TrimSpace(src) == "" {
		return AnyMessage, nil
	}
	program, err := expr.Compile(src, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return func(m Message) (bool, error) {
		env := exprEnv{
			Kind:   m.Kind.String(),
			Text:   m.Text(),
			Size:   len(m.Data),
			Binary: m.Kind == KindBinary,
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return false, fmt.Errorf("eval %q: %w", src, err)
		}
		ok, _ := out.(bool)
		return ok, nil
	}, nil
}

// Send returns an open action writing msg.
func Send(msg Message) Action {
	return func(ctx context.Context, s Sender) error {
		return s.Send(ctx, msg)
	}
}
