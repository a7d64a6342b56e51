package emit

import (
	"sort"

	"github.com/pacvolt/pva/internal/model"
)

// Merge performs a stable k-way merge of the per-source record sequences,
// keyed by timestamp. Ties break first by source recency rank, then by
// original within-file order, so identical inputs always produce the
// identical sequence.
func Merge(files []model.DataFile) []model.Record {
	ordered := make([]model.DataFile, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Kind.Rank() < ordered[j].Kind.Rank()
	})

	total := 0
	for _, f := range ordered {
		total += len(f.Records)
	}

	idx := make([]int, len(ordered))
	out := make([]model.Record, 0, total)
	for {
		// Pick the earliest head; on equal timestamps the first file in
		// rank order wins, and within one file records keep their order.
		best := -1
		for i, f := range ordered {
			if idx[i] >= len(f.Records) {
				continue
			}
			if best == -1 || f.Records[idx[i]].Timestamp.Before(ordered[best].Records[idx[best]].Timestamp) {
				best = i
			}
		}
		if best == -1 {
			return out
		}
		out = append(out, ordered[best].Records[idx[best]])
		idx[best]++
	}
}
