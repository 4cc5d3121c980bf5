package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/brightsync"
	"github.com/agentstation/brightsync/internal/cmd/output"
)

// storeOp describes a command that runs one operation per store.
type storeOp struct {
	op    brightsync.Operation
	group string
	short string
	long  string
}

var (
	opScan = storeOp{
		op:    brightsync.OpScan,
		group: "core",
		short: "Scan stores for catalog conflicts",
		long: `Scan lists each store's full catalog, reports duplicate SKUs, SKUs with
invalid characters, variants without a sub-SKU and products without
inventory, writes the store's conflict report and updates the shared
conflict flags.`,
	}
	opSync = storeOp{
		op:    brightsync.OpSync,
		group: "core",
		short: "Build sync-ready batches of changed variants",
		long: `Sync fetches the products changed within each store's inclusion window,
skips unchanged and flagged products, resolves variants, tags and images,
and writes the store's sync-ready batch and cache.`,
	}
	opRun = storeOp{
		op:    brightsync.OpRun,
		group: "core",
		short: "Scan and then sync stores",
		long:  `Run scans each store and syncs it under one lock.`,
	}
	opPush = storeOp{
		op:    brightsync.OpPush,
		group: "delivery",
		short: "Push sync-ready batches to the fulfillment platform",
		long: `Push applies each store's sync-ready batch to the fulfillment platform.
Variants that are missing or fail go to the store's retry queue.`,
	}
)

// newStoreCommand creates the command of a per-store operation.
func (a *App) newStoreCommand(s storeOp) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     string(s.op) + " [store...]",
		GroupID: s.group,
		Short:   s.short,
		Long:    s.long,
		Example: fmt.Sprintf("  brightsync %[1]s acme\n  brightsync %[1]s --all -o json", s.op),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("specify at least one store or --all")
			}
			runner, err := a.Runner()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var summaries []*brightsync.Summary
			if all {
				summaries, err = runner.RunAll(ctx, s.op)
				if err != nil {
					return err
				}
			} else {
				for _, key := range args {
					summary, _ := runner.Do(ctx, s.op, key)
					summaries = append(summaries, summary)
				}
			}
			return a.writeSummaries(summaries)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "run every configured store")
	return cmd
}

// NewRerunCommand creates the rerun command.
func (a *App) NewRerunCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rerun",
		GroupID: "delivery",
		Short:   "Retry queued variants of every store",
		Long: `Rerun retries every store's queued variants. Variants that still fail
are requeued; those failing too often move to the store's dead letters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := a.Runner()
			if err != nil {
				return err
			}
			summaries, err := runner.Rerun(cmd.Context())
			if err != nil {
				return err
			}
			return a.writeSummaries(summaries)
		},
	}
}

// NewStoresCommand creates the stores command.
func (a *App) NewStoresCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List configured stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := a.Runner()
			if err != nil {
				return err
			}
			keys, err := runner.ListStores(cmd.Context())
			if err != nil {
				return err
			}
			format := output.DetectFormat(a.config.Format)
			if format == output.FormatTable {
				data := output.Data{Headers: []string{"Store"}}
				for _, key := range keys {
					data.Rows = append(data.Rows, []string{key})
				}
				return output.NewFormatter(format).Format(os.Stdout, data)
			}
			return output.NewFormatter(format).Format(os.Stdout, keys)
		},
	}
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "brightsync version %s\n", a.version)
			fmt.Fprintf(w, "commit: %s\n", a.commit)
			fmt.Fprintf(w, "built: %s\n", a.date)
			fmt.Fprintf(w, "built by: %s\n", a.builtBy)
			fmt.Fprintf(w, "go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// writeSummaries prints the summaries and fails when any store failed.
func (a *App) writeSummaries(summaries []*brightsync.Summary) error {
	format, err := output.ParseFormat(a.config.Format)
	if err != nil {
		return err
	}
	format = output.DetectFormat(string(format))

	var data any = summaries
	if format == output.FormatTable {
		data = output.SummaryTable(summaries)
	}
	if err := output.NewFormatter(format).Format(os.Stdout, data); err != nil {
		return err
	}

	failed := 0
	for _, s := range summaries {
		if s.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d stores failed", failed, len(summaries))
	}
	return nil
}
