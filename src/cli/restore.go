package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sitesnap/src/safety"
	"sitesnap/src/store"
)

func newRestoreCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [INDEX]",
		Short: "Restore every target from a snapshot (0 = newest, see 'list')",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("snapshot index must be a number, got %q", args[0])
				}
				index = n
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// Resolve before building the site, which creates a missing root.
			entry, err := store.New(cfg.SnapshotsDir).Resolve(index)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ACTION\tTARGET\tSNAPSHOT")
				for _, t := range a.site.Targets() {
					fmt.Fprintf(tw, "restore\t%s\t%s\n", t.Name(), entry.Name)
				}
				return tw.Flush()
			}
			q := fmt.Sprintf("Restore %s? Current data of %d targets will be replaced.", entry.Name, len(a.site.Targets()))
			ok, err := safety.Confirm(opts, cmd.InOrStdin(), stdout, q)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "Aborted.")
				return nil
			}

			report, err := a.site.Restore(commandContext(cmd), entry.Name)
			renderReport(stdout, report)
			if err != nil {
				return err
			}
			return failedError("restore", report)
		},
	}
}
