package cluster

import (
	"time"

	"github.com/pacvolt/pva/internal/model"
)

// DefaultGap is the clustering gap threshold used when a run does not
// configure one. It is deliberately distinct from the exclusion margin:
// the gap decides which fault events belong together, the margin expands
// the finished cluster span afterwards.
const DefaultGap = 10 * time.Minute

// Config controls fault clustering.
type Config struct {
	Gap time.Duration // maximum event-to-event gap within one cluster
}

// Clusterer groups fault-log events into temporally contiguous clusters.
type Clusterer struct {
	cfg Config
}

// New creates a Clusterer with the given config. A non-positive gap falls
// back to DefaultGap.
func New(cfg Config) *Clusterer {
	if cfg.Gap <= 0 {
		cfg.Gap = DefaultGap
	}
	return &Clusterer{cfg: cfg}
}

// Cluster runs a single forward pass over time-ordered fault events:
// a gap above the threshold starts a new cluster, a gap at or below it
// extends the active one. Zero events yields an empty (valid) list.
// The returned clusters are non-overlapping and sorted by start time.
func (c *Clusterer) Cluster(events []model.Record) []model.FaultCluster {
	if len(events) == 0 {
		return nil
	}

	var clusters []model.FaultCluster
	active := model.FaultCluster{
		Events: []model.Record{events[0]},
		Start:  events[0].Timestamp,
		End:    events[0].Timestamp,
	}
	for _, e := range events[1:] {
		if e.Timestamp.Sub(active.End) > c.cfg.Gap {
			clusters = append(clusters, active)
			active = model.FaultCluster{
				Events: []model.Record{e},
				Start:  e.Timestamp,
				End:    e.Timestamp,
			}
			continue
		}
		active.Events = append(active.Events, e)
		active.End = e.Timestamp
	}
	return append(clusters, active)
}
