package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newSaveCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Snapshot every configured target into a new archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			if getSafetyOptions(cmd).DryRun {
				fmt.Fprintf(stdout, "Would snapshot into %s:\n", a.site.Root())
				for _, t := range a.site.Targets() {
					fmt.Fprintf(stdout, "  %s\n", t.Name())
				}
				return nil
			}

			report, err := a.site.Snapshot(commandContext(cmd))
			renderReport(stdout, report)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Snapshot written:", filepath.Join(a.site.Root(), report.Archive))
			return failedError("save", report)
		},
	}
}
