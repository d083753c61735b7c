// File: cmd/cache.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/iocscope/internal/observability"
)

// newCacheCmd creates the `cache` command group. The result cache lives in
// process memory, so these operate on the cache of the current invocation;
// they exist mainly for embedding iocscope as a long-lived session.
func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspects and clears the in-memory result cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "Lists the cached result keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := initializeComponents(observability.GetLogger())
			if err != nil {
				return err
			}
			defer comps.Shutdown()

			keys := comps.Service.CacheKeys()
			if len(keys) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empties the result cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := initializeComponents(observability.GetLogger())
			if err != nil {
				return err
			}
			defer comps.Shutdown()

			comps.Service.ClearCache()
			fmt.Println("Cache cleared.")
			return nil
		},
	})

	return cacheCmd
}
