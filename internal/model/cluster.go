package model

import "time"

// FaultCluster groups temporally adjacent fault-log events. Clusters in a
// run are non-overlapping and sorted by Start; each holds at least one event.
type FaultCluster struct {
	Events []Record
	Start  time.Time
	End    time.Time
}

// Window returns the cluster span expanded symmetrically by margin.
func (c FaultCluster) Window(margin time.Duration) Span {
	return Span{Min: c.Start.Add(-margin), Max: c.End.Add(margin)}
}
