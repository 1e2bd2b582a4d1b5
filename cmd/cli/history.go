package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/glimps-re/autovt/pkg/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the last scanned files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		store, err := openHistory()
		if err != nil {
			return
		}
		defer closeHistory(store)
		entries, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return
		}
		out := cmd.OutOrStdout()
		printHistoryHeader(out)
		for _, e := range entries {
			printHistoryEntry(out, e)
		}
		return
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <sha256>",
	Short: "Show the last scan of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		store, err := openHistory()
		if err != nil {
			return
		}
		defer closeHistory(store)
		entry, err := store.Last(cmd.Context(), args[0])
		if errors.Is(err, history.ErrEntryNotFound) {
			return fmt.Errorf("%s was never scanned", args[0])
		}
		if err != nil {
			return
		}
		out := cmd.OutOrStdout()
		printHistoryHeader(out)
		printHistoryEntry(out, *entry)
		if entry.ReportURL != "" {
			fmt.Fprintf(out, "report: %s\n", entry.ReportURL)
		}
		return
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to list, 0 lists all")
}

func openHistory() (*history.Store, error) {
	if conf.History == "" {
		return nil, errors.New("history is kept in memory, set --history to a database file")
	}
	return history.NewStore(conf.History)
}

func closeHistory(store *history.Store) {
	if err := store.Close(); err != nil {
		logger.Warn("could not close history", slog.String("error", err.Error()))
	}
}

func printHistoryHeader(out io.Writer) {
	fmt.Fprintf(out, "|%-20s|%-8s|%-10s|%-64s|%s\n", "Scanned", "Verdict", "Detections", "SHA256", "File")
}

func printHistoryEntry(out io.Writer, e history.Entry) {
	fmt.Fprintf(out, "|%-20s|%-8s|%-10s|%-64s|%s\n", e.ScannedAt.Local().Format("2006-01-02 15:04:05"), e.Verdict, e.Outcome().Detections(), e.SHA256, e.Location)
}
