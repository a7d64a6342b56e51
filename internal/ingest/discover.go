package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pacvolt/pva/internal/model"
)

// ErrMissingRequiredFile is returned when directory mode finds no fault log.
var ErrMissingRequiredFile = errors.New("required fault log not found")

// kindFiles maps directory-mode filenames to source kinds.
var kindFiles = map[string]model.SourceKind{
	"24roll.csv":  model.KindRolling,
	"24prev.csv":  model.KindPrevious,
	"monthly.csv": model.KindMonthly,
	"fault.csv":   model.KindFault,
}

// Source is one (path, kind) pair handed to the ingestor.
type Source struct {
	Path string
	Kind model.SourceKind
}

// Discover scans dir for recognized export files and returns them in rank
// order, fault log last. The fault log is mandatory in directory mode;
// its absence aborts before any file is parsed.
func Discover(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: discover %s: %w", dir, err)
	}

	var srcs []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind, ok := kindFiles[e.Name()]
		if !ok {
			continue
		}
		srcs = append(srcs, Source{Path: filepath.Join(dir, e.Name()), Kind: kind})
	}

	sort.Slice(srcs, func(i, j int) bool {
		return srcs[i].Kind.Rank() < srcs[j].Kind.Rank()
	})

	if len(srcs) == 0 || srcs[len(srcs)-1].Kind != model.KindFault {
		return nil, fmt.Errorf("ingest: %s: %w", dir, ErrMissingRequiredFile)
	}
	return srcs, nil
}
