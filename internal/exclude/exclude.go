package exclude

import (
	"time"

	"github.com/pacvolt/pva/internal/config"
	"github.com/pacvolt/pva/internal/model"
)

// Config controls exclusion filtering. Min and Max are hard bounds applied
// under either policy; nil means unbounded on that side.
type Config struct {
	Policy config.ExclusionPolicy
	Margin time.Duration
	Min    *time.Time
	Max    *time.Time
}

// Apply restricts each file's records per the exclusion policy. Under NONE
// only the hard bounds apply. Under ALL a record survives iff its timestamp
// lies within some cluster's margin-expanded span, intersected with the
// bounds; an empty cluster list therefore yields empty files, which is a
// valid outcome, not an error.
func Apply(files []model.DataFile, clusters []model.FaultCluster, cfg Config) []model.DataFile {
	windows := make([]model.Span, 0, len(clusters))
	for _, c := range clusters {
		windows = append(windows, c.Window(cfg.Margin))
	}

	out := make([]model.DataFile, 0, len(files))
	for _, f := range files {
		kept := f
		kept.Records = make([]model.Record, 0, len(f.Records))
		for _, rec := range f.Records {
			if !inBounds(rec.Timestamp, cfg.Min, cfg.Max) {
				continue
			}
			if cfg.Policy == config.ExclusionAll && !inWindows(rec.Timestamp, windows) {
				continue
			}
			kept.Records = append(kept.Records, rec)
		}
		if len(kept.Records) > 0 {
			kept.Coverage = model.Span{
				Min: kept.Records[0].Timestamp,
				Max: kept.Records[len(kept.Records)-1].Timestamp,
			}
		} else {
			kept.Coverage = model.Span{}
		}
		out = append(out, kept)
	}
	return out
}

func inBounds(t time.Time, min, max *time.Time) bool {
	if min != nil && t.Before(*min) {
		return false
	}
	if max != nil && t.After(*max) {
		return false
	}
	return true
}

func inWindows(t time.Time, windows []model.Span) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
