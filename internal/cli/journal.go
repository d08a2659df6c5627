package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/composable/internal/demo"
	"github.com/roach88/composable/internal/journal"
	"github.com/roach88/composable/internal/store"
)

// JournalOptions holds flags for the journal commands.
type JournalOptions struct {
	*RootOptions
	Database string
	Session  string
	Parallel int
}

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and replay recorded sessions",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newJournalSessionsCommand(opts))
	cmd.AddCommand(newJournalTraceCommand(opts))
	cmd.AddCommand(newJournalReplayCommand(opts))
	return cmd
}

func (o *JournalOptions) open(cmd *cobra.Command) (*journal.Journal, error) {
	j, err := journal.Open(o.Database, journal.WithLogger(o.logger(cmd)))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

// featureOf returns the feature a session was recorded from. Labels are
// "<feature>" or "<feature>/<scenario>".
func featureOf(s journal.Session) (demo.Feature, error) {
	name, _, _ := strings.Cut(s.Label, "/")
	f, ok := demo.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("session %s: label %q names no feature", s.ID, s.Label)
	}
	return f, nil
}

// SessionInfo is a session with its action count.
type SessionInfo struct {
	journal.Session
	Actions int `json:"actions"`
}

func newJournalSessionsCommand(opts *JournalOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sessions",
		Short:         "List recorded sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			j, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer j.Close()

			sessions, err := j.Sessions(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list sessions", err)
			}

			infos := make([]SessionInfo, 0, len(sessions))
			var text strings.Builder
			for _, s := range sessions {
				counts, err := j.CountByKind(ctx, s.ID)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to count actions", err)
				}
				n := 0
				for _, c := range counts {
					n += c
				}
				infos = append(infos, SessionInfo{Session: s, Actions: n})
				fmt.Fprintf(&text, "%4d  %s  %-28s %d actions\n", s.Ordinal, s.ID, s.Label, n)
			}
			if len(infos) == 0 {
				text.WriteString("No sessions recorded.\n")
			}
			return opts.formatter(cmd).Success(infos, text.String())
		},
	}
}

// TraceOutput is the trace of one session.
type TraceOutput struct {
	Session journal.Session `json:"session"`
	Entries []journal.Entry `json:"entries"`
	Kinds   map[string]int  `json:"kinds"`
}

func newJournalTraceCommand(opts *JournalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded actions of a session",
		Long: `Show every recorded action of a session in seq order, with its origin,
the action it was emitted from and the fingerprint of the resulting state.

Examples:
  composable journal trace --db runs.db --session 0191e0b2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			j, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer j.Close()

			sess, err := j.Session(ctx, opts.Session)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load session", err)
			}
			entries, err := j.Entries(ctx, sess.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read entries", err)
			}
			kinds, err := j.CountByKind(ctx, sess.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to count actions", err)
			}

			var text strings.Builder
			fmt.Fprintf(&text, "Session %s (%s): %d actions\n\n", sess.ID, sess.Label, len(entries))
			for _, e := range entries {
				from := ""
				if e.Parent != 0 {
					from = fmt.Sprintf(" <- %d", e.Parent)
				}
				fmt.Fprintf(&text, "%5d  %-6s %-24s %s  %s%s\n", e.Seq, e.Origin, e.Kind, e.Payload, shortHash(e.StateHash), from)
			}
			return opts.formatter(cmd).Success(TraceOutput{Session: sess, Entries: entries, Kinds: kinds}, text.String())
		},
	}
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

// SessionReplay is the replay outcome of one session.
type SessionReplay struct {
	Session string `json:"session"`
	Label   string `json:"label"`
	OK      bool   `json:"ok"`

	*journal.ReplayResult

	Code  string `json:"code,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
	Error string `json:"error,omitempty"`
}

// ReplayOutput holds the replay result of every selected session.
type ReplayOutput struct {
	Sessions []SessionReplay `json:"sessions"`
	Total    int             `json:"total"`
	Failed   int             `json:"failed"`
}

func newJournalReplayCommand(opts *JournalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay sessions and verify every recorded state",
		Long: `Replay recorded sessions through a fresh store of their feature, with
effects discarded and recorded effect actions sent in their place, and
compare every resulting state with its recorded fingerprint.

Without --session every session in the journal is replayed.

Exit codes:
  0 - Every session replayed identically
  1 - A session diverged or could not be replayed
  2 - Command error (journal not found, unknown session, etc.)

Examples:
  composable journal replay --db runs.db
  composable journal replay --db runs.db --session 0191e0b2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalReplay(commandContext(cmd), opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay one session only")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 4, "sessions to replay at once")
	return cmd
}

func runJournalReplay(ctx context.Context, opts *JournalOptions, cmd *cobra.Command) error {
	j, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	var sessions []journal.Session
	if opts.Session != "" {
		s, err := j.Session(ctx, opts.Session)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load session", err)
		}
		sessions = []journal.Session{s}
	} else {
		sessions, err = j.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	logger := opts.logger(cmd)
	out := ReplayOutput{Sessions: make([]SessionReplay, len(sessions)), Total: len(sessions)}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, s := range sessions {
		g.Go(func() error {
			out.Sessions[i] = replaySession(gctx, j, s, store.WithLogger(logger))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "replay interrupted", err)
	}

	var text strings.Builder
	for _, r := range out.Sessions {
		if r.OK {
			fmt.Fprintf(&text, "✓ %s (%s): %d actions, %d from effects, state %s\n",
				r.Session, r.Label, r.Actions, r.FromEffect, shortHash(r.FinalHash))
			continue
		}
		out.Failed++
		fmt.Fprintf(&text, "✗ %s (%s): %s\n", r.Session, r.Label, r.Error)
	}
	fmt.Fprintf(&text, "\nReplay Summary: %d session(s), %d failed\n", out.Total, out.Failed)

	f := opts.formatter(cmd)
	if out.Failed > 0 {
		return f.Failure(out, text.String(), ErrCodeDivergence, fmt.Sprintf("%d session(s) failed to replay", out.Failed))
	}
	return f.Success(out, text.String())
}

func replaySession(ctx context.Context, j *journal.Journal, s journal.Session, opts ...store.Option) SessionReplay {
	r := SessionReplay{Session: s.ID, Label: s.Label}
	f, err := featureOf(s)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	res, err := f.Replay(ctx, j, s.ID, opts...)
	if err != nil {
		r.Error = err.Error()
		var rerr *journal.ReplayError
		if errors.As(err, &rerr) {
			r.Code, r.Seq = string(rerr.Code), rerr.Seq
		}
		return r
	}
	r.OK = true
	r.ReplayResult = res
	return r
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
