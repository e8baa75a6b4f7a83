package snapshot

import (
	"github.com/pkg/errors"
)

// Outcome is the result of snapshotting or restoring one target.
type Outcome struct {
	Target   string
	DumpFile string
	// Err is nil on success. A missing artifact during restore is reported
	// here too, with Skipped set.
	Err     error
	Skipped bool
}

// Report collects per-target outcomes of a Site operation in target order.
type Report struct {
	// Archive is the snapshot archive written or read.
	Archive  string
	Outcomes []Outcome
}

// Failed returns outcomes that carry an error, skipped ones included.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// OK reports whether every target succeeded.
func (r Report) OK() bool {
	return len(r.Failed()) == 0
}

func (r *Report) record(name, dumpFile string, err error) {
	r.Outcomes = append(r.Outcomes, Outcome{
		Target:   name,
		DumpFile: dumpFile,
		Err:      err,
		Skipped:  errors.Is(err, ErrMissingArtifact),
	})
}
