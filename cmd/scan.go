// File: cmd/scan.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/iocscope/api/schemas"
	"github.com/xkilldash9x/iocscope/internal/classify"
	"github.com/xkilldash9x/iocscope/internal/intel"
	"github.com/xkilldash9x/iocscope/internal/observability"
	"github.com/xkilldash9x/iocscope/internal/reporting"
)

// newScanCmd creates and configures the `scan` command.
func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [indicators...]",
		Short: "Looks up reputation data for one or more indicators",
		Long: `Classifies each argument as a hash, IP address, domain, URL, or
filename and queries the upstream reputation API. Multiple indicators are
scanned sequentially with a fixed delay so the free-tier quota survives.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line flags override
			// config file and environment values with the right precedence.
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Populate the ScanConfig from flags and final config values.
			appCfg.Scan.Indicators = args
			appCfg.Scan.Type = viper.GetString("type")
			appCfg.Scan.Relationships = viper.GetBool("relationships")
			appCfg.Scan.Output = viper.GetString("output")
			appCfg.Scan.Format = viper.GetString("format")
			appCfg.Scan.BatchDelay = viper.GetDuration("delay")

			comps, err := initializeComponents(logger)
			if err != nil {
				return err
			}
			defer comps.Shutdown()

			reqs := make([]schemas.ScanRequest, 0, len(args))
			for _, indicator := range args {
				indType := schemas.IndicatorType(appCfg.Scan.Type)
				if indType == "" {
					indType = classify.Classify(indicator)
				}
				reqs = append(reqs, schemas.ScanRequest{
					Indicator:            indicator,
					Type:                 indType,
					IncludeRelationships: appCfg.Scan.Relationships,
				})
			}

			session := intel.NewSession(comps.Service, appCfg.History.Limit)
			session.Reload(ctx)

			if len(reqs) == 1 {
				if _, err := session.Scan(ctx, reqs[0]); err != nil {
					return fmt.Errorf("scan failed for %q: %w", reqs[0].Indicator, err)
				}
			} else {
				logger.Info("Starting batch scan",
					zap.Int("indicators", len(reqs)),
					zap.Duration("delay", appCfg.Scan.BatchDelay),
				)
				session.ScanBatch(ctx, reqs)
			}

			results := session.Results()
			for i := len(results) - 1; i >= 0; i-- {
				printSummary(results[i])
			}

			if appCfg.Scan.Output != "" {
				reporter, err := reporting.New(appCfg.Scan.Format, appCfg.Scan.Output, Version)
				if err != nil {
					return err
				}
				if err := reporter.Write(results); err != nil {
					return err
				}
				fmt.Printf("\nReport written to %s\n", appCfg.Scan.Output)
			}

			info := session.RateLimit()
			logger.Debug("Quota after scan",
				zap.Int("remaining", info.Remaining),
				zap.Time("reset_at", info.ResetAt),
			)
			return nil
		},
	}

	scanCmd.Flags().StringP("type", "t", "", "Force the indicator type (hash, ip, domain, url, filename) instead of auto-detecting.")
	scanCmd.Flags().BoolP("relationships", "r", false, "Expand relationships (contacted infrastructure, resolutions, sandbox behavior).")
	scanCmd.Flags().StringP("output", "o", "", "Output file path for the report. If unset, no report is generated.")
	scanCmd.Flags().StringP("format", "f", "json", "Format for the output report.")
	scanCmd.Flags().Duration("delay", 15*time.Second, "Delay between requests in a batch scan.")

	return scanCmd
}

// printSummary renders one result as a single human-readable line block.
func printSummary(r schemas.AnalysisResult) {
	fmt.Printf("\n%s (%s)\n", r.IOC, r.IOCType)
	if !r.Found {
		fmt.Printf("  no data: %s\n", r.Permalink)
		return
	}
	fmt.Printf("  threat: %s  score: %.2f  detections: %s\n",
		r.ThreatLevel, r.ThreatScore, r.DetectionStats.DetectionRatio)
	if r.FileInfo != nil && r.FileInfo.Filename != "" {
		fmt.Printf("  file: %s (%s)\n", r.FileInfo.Filename, r.FileInfo.TypeDescription)
	}
	if r.NetworkInfo != nil && r.NetworkInfo.ASOwner != "" {
		fmt.Printf("  network: AS%d %s (%s)\n", r.NetworkInfo.ASN, r.NetworkInfo.ASOwner, r.NetworkInfo.Country)
	}
	for _, indicator := range r.BehavioralIndicators {
		fmt.Printf("  behavior: %s\n", indicator)
	}
	for name, values := range r.Relationships {
		if len(values) > 0 {
			fmt.Printf("  %s: %v\n", name, values)
		}
	}
	fmt.Printf("  %s\n", r.Permalink)
}
