package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/sequencer/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database      string
	Status        string // optional - filter runs by status
	Batches       bool
	Notifications bool
}

// RunEntry is one journaled run.
type RunEntry struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	Kind       string `json:"kind"`
	Source     string `json:"source"`
	Output     string `json:"output"`
	Status     string `json:"status"`
	Registered int64  `json:"registered_seq"`
	Finished   int64  `json:"finished_seq,omitempty"`
}

// BatchEntry is one journaled batch.
type BatchEntry struct {
	Seq      int64  `json:"seq"`
	Token    string `json:"token"`
	Records  int    `json:"records"`
	Internal bool   `json:"internal,omitempty"`
	Outcome  string `json:"outcome"`
}

// NotificationEntry is one journaled listener callback.
type NotificationEntry struct {
	Seq      int64  `json:"seq"`
	Listener string `json:"listener"`
	Outcome  string `json:"outcome"`
	Message  string `json:"message,omitempty"`
}

// JournalResult holds the journal command output.
type JournalResult struct {
	Runs          []RunEntry          `json:"runs"`
	Batches       []BatchEntry        `json:"batches,omitempty"`
	Notifications []NotificationEntry `json:"notifications,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded derivation runs",
		Long: `List the derivation runs recorded in a coordinator journal, optionally
with the batches and listener notifications around them.

Examples:
  sequencer journal --db ./journal.db
  sequencer journal --db ./journal.db --status reset
  sequencer journal --db ./journal.db --batches --notifications --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from config)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (pending|completed|reset)")
	cmd.Flags().BoolVar(&opts.Batches, "batches", false, "include batches")
	cmd.Flags().BoolVar(&opts.Notifications, "notifications", false, "include notifications")

	return cmd
}

func runJournal(ctx context.Context, opts *JournalOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	db := opts.Database
	if db == "" {
		db = opts.settings().Database
	}
	if db == "" {
		return NewExitError(ExitCommandError, "no journal database: pass --db or set database in the config")
	}

	status := store.RunStatus(opts.Status)
	switch status {
	case "", store.RunPending, store.RunCompleted, store.RunReset:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q: must be pending, completed or reset", opts.Status))
	}

	// store.Open would create a missing file
	if _, err := os.Stat(db); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", db), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result, err := readJournal(ctx, st, status, opts.Batches, opts.Notifications)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputJournalText(cmd, result)
}

func readJournal(ctx context.Context, st *store.Store, status store.RunStatus, batches, notifications bool) (JournalResult, error) {
	runs, err := st.ReadRuns(ctx, status)
	if err != nil {
		return JournalResult{}, err
	}
	result := JournalResult{Runs: make([]RunEntry, 0, len(runs))}
	for _, r := range runs {
		result.Runs = append(result.Runs, RunEntry{
			ID:         r.ID,
			Token:      r.Token,
			Kind:       r.Kind,
			Source:     r.SourcePath,
			Output:     r.OutputPath,
			Status:     string(r.Status),
			Registered: r.RegisteredSeq,
			Finished:   r.FinishedSeq,
		})
	}

	if batches {
		bs, err := st.ReadBatches(ctx)
		if err != nil {
			return JournalResult{}, err
		}
		for _, b := range bs {
			result.Batches = append(result.Batches, BatchEntry(b))
		}
	}

	if notifications {
		ns, err := st.ReadNotifications(ctx, "")
		if err != nil {
			return JournalResult{}, err
		}
		for _, n := range ns {
			result.Notifications = append(result.Notifications, NotificationEntry{
				Seq:      n.Seq,
				Listener: n.ListenerID,
				Outcome:  n.Outcome,
				Message:  n.Message,
			})
		}
	}
	return result, nil
}

func outputJournalText(cmd *cobra.Command, result JournalResult) error {
	w := cmd.OutOrStdout()

	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tKIND\tSTATUS\tFINISHED\tSOURCE\tOUTPUT")
		for _, r := range result.Runs {
			finished := "-"
			if r.Finished > 0 {
				finished = fmt.Sprint(r.Finished)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Registered, r.Kind, r.Status, finished, r.Source, r.Output)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(result.Batches) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tRECORDS\tOUTCOME\tTOKEN")
		for _, b := range result.Batches {
			outcome := b.Outcome
			if b.Internal {
				outcome += " (internal)"
			}
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", b.Seq, b.Records, outcome, b.Token)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(result.Notifications) > 0 {
		fmt.Fprintln(w)
		for _, n := range result.Notifications {
			line := fmt.Sprintf("[%d] %s %s", n.Seq, n.Listener, n.Outcome)
			if n.Message != "" {
				line += ": " + n.Message
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
