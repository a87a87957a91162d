package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/difyrun/internal/infra/ledger"
)

var statusOutputPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show success and outstanding-failure counts for an output path",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutputPath, "output", "o", "", "output JSONL file path")
	_ = statusCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	setupLogging()

	successes, err := ledger.CountSuccesses(statusOutputPath)
	if err != nil {
		slog.Error("Failed to read output log", "error", err)
		os.Exit(1)
	}

	failed, err := ledger.LoadFailedIDs(statusOutputPath)
	if err != nil {
		slog.Error("Failed to read retry ledger", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ARTIFACT\tPATH\tCOUNT")
	_, _ = fmt.Fprintf(w, "output log\t%s\t%d\n", statusOutputPath, successes)
	_, _ = fmt.Fprintf(w, "retry ledger\t%s\t%d\n", ledger.RetryPath(statusOutputPath), len(failed))
	_ = w.Flush()

	if len(failed) > 0 {
		fmt.Println()
		fmt.Println("Outstanding failed ids:")
		ids := make([]string, 0, len(failed))
		for id := range failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
	}
}
