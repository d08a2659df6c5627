package reducer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
)

// Debug logs every action r receives and the resulting state diff at debug
// level, through the logger in the dependency context.
func Debug[S, A any](r Reducer[S, A], name string) Reducer[S, A] {
	return Func[S, A](func(s *S, a A, deps *dependency.Values) effect.Effect[A] {
		logger := dependency.Get(deps, dependency.Logger)
		if !logger.Enabled(context.Background(), slog.LevelDebug) {
			return r.Reduce(s, a, deps)
		}

		before := render(*s)
		eff := r.Reduce(s, a, deps)
		after := render(*s)

		attrs := []any{
			"reducer", name,
			"action", fmt.Sprintf("%T", a),
		}
		if d := diff(before, after); d != "" {
			attrs = append(attrs, "diff", d)
		} else {
			attrs = append(attrs, "diff", "(no state changes)")
		}
		if !eff.IsNone() {
			attrs = append(attrs, "effect", eff.String())
		}
		logger.Debug("received action", attrs...)
		return eff
	})
}

func render(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v\n", v)
	}
	return string(data) + "\n"
}

// diff renders a unified line diff of a and b. It returns "" when they are
// equal.
func diff(a, b string) string {
	if a == b {
		return ""
	}
	d, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "before",
		ToFile:   "after",
		Context:  1,
	})
	if err != nil {
		return fmt.Sprintf("diff failed: %v", err)
	}
	return d
}
