// File: cmd/history.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/iocscope/internal/observability"
)

// newHistoryCmd creates the `history` command group for browsing and pruning
// the persisted scan history.
func newHistoryCmd() *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Lists past scans, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := initializeComponents(observability.GetLogger())
			if err != nil {
				return err
			}
			defer comps.Shutdown()

			entries, err := comps.Service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No scan history.")
				return nil
			}

			for _, entry := range entries {
				marker := " "
				if entry.Favorite {
					marker = "*"
				}
				fmt.Printf("%s %s  %-8s  %-8s  %s  %s\n",
					marker,
					entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
					entry.Type,
					entry.Result.ThreatLevel,
					entry.Indicator,
					entry.ID,
				)
			}
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of entries to list (defaults to the configured history limit).")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Deletes one history entry by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := initializeComponents(observability.GetLogger())
			if err != nil {
				return err
			}
			defer comps.Shutdown()

			if err := comps.Service.DeleteHistory(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete history entry: %w", err)
			}
			fmt.Println("Deleted", args[0])
			return nil
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Deletes the entire scan history",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := initializeComponents(observability.GetLogger())
			if err != nil {
				return err
			}
			defer comps.Shutdown()

			if err := comps.Service.ClearHistory(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Println("History cleared.")
			return nil
		},
	})

	return historyCmd
}
