package overlap

import (
	"time"

	"github.com/pacvolt/pva/internal/config"
	"github.com/pacvolt/pva/internal/model"
)

// Result is the outcome of overlap resolution: the same files in the same
// order with per-policy surviving records, plus a per-kind dropped count.
// Every input record is either kept or counted as dropped; none is lost
// silently or duplicated.
type Result struct {
	Files   []model.DataFile
	Dropped map[model.SourceKind]int
}

// Resolve applies the overlap policy to all non-fault data files. Under
// ONLY_RECENT, wherever two files' coverage intersects, the lower-ranked
// file loses its records inside the closed intersection. Under ALL, every
// record survives with its provenance tag intact.
func Resolve(files []model.DataFile, policy config.OverlapPolicy) Result {
	res := Result{Dropped: make(map[model.SourceKind]int)}
	if policy == config.OverlapAll {
		res.Files = files
		return res
	}

	for _, f := range files {
		shadows := shadowsFor(f, files)
		if len(shadows) == 0 || f.Empty() {
			res.Files = append(res.Files, f)
			continue
		}

		kept := f
		kept.Records = make([]model.Record, 0, len(f.Records))
		for _, rec := range f.Records {
			if inAny(rec.Timestamp, shadows) {
				res.Dropped[f.Kind]++
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
		res.Files = append(res.Files, kept)
	}
	return res
}

// shadowsFor collects the coverage intersections between f and every
// higher-ranked file. Records of f inside a shadow are dropped.
func shadowsFor(f model.DataFile, files []model.DataFile) []model.Span {
	var shadows []model.Span
	for _, g := range files {
		if g.Kind.Rank() >= f.Kind.Rank() || g.Empty() || f.Empty() {
			continue
		}
		if f.Coverage.Intersects(g.Coverage) {
			shadows = append(shadows, f.Coverage.Intersect(g.Coverage))
		}
	}
	return shadows
}

func inAny(t time.Time, spans []model.Span) bool {
	for _, s := range spans {
		if s.Contains(t) {
			return true
		}
	}
	return false
}
