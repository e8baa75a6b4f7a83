package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"sitesnap/src/snapshot"
)

func renderReport(w io.Writer, r snapshot.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSTATUS\tFILE")
	for _, o := range r.Outcomes {
		status := "ok"
		switch {
		case o.Skipped:
			status = "skipped"
		case o.Err != nil:
			status = "failed: " + o.Err.Error()
		}
		file := o.DumpFile
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Target, status, file)
	}
	_ = tw.Flush()
}

func failedError(op string, r snapshot.Report) error {
	if failed := r.Failed(); len(failed) > 0 {
		return fmt.Errorf("%s: %d of %d targets did not complete", op, len(failed), len(r.Outcomes))
	}
	return nil
}
