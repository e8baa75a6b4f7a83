package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sitesnap/src/store"
)

func newListCmd(stdout, stderr io.Writer) *cobra.Command {
	var long bool
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			entries, err := store.New(cfg.SnapshotsDir).List()
			if err != nil {
				return err
			}
			switch output {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "text", "":
				if long {
					return renderLong(stdout, entries)
				}
				for _, e := range entries {
					fmt.Fprintf(stdout, "%d: %s\n", e.Index, e.Name)
				}
				return nil
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show size and age")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text|json")
	return cmd
}

func renderLong(w io.Writer, entries []store.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tSIZE\tTAKEN")
	for _, e := range entries {
		taken := e.ModTime
		if !e.Taken.IsZero() {
			taken = e.Taken
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Index, e.Name, humanize.Bytes(uint64(e.Size)), humanize.Time(taken))
	}
	return tw.Flush()
}
