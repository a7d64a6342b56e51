package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pacvolt/pva/internal/model"
)

// ErrInvalidDuration marks an unparsable margin, gap or time-bound string.
// It always surfaces during validation, before any file I/O.
var ErrInvalidDuration = errors.New("invalid duration or time bound")

// DefaultBaseDate anchors the HH:MM:SS offsets in the exports when no base
// date is configured.
const DefaultBaseDate = "2025-354T00:00:00"

// OverlapPolicy decides which source survives where coverage intersects.
type OverlapPolicy string

const (
	// OverlapOnlyRecent drops the lower-ranked source's records inside
	// the intersection; the higher-ranked source's records are kept.
	OverlapOnlyRecent OverlapPolicy = "ONLY_RECENT"
	// OverlapAll keeps every record; provenance stays on each one.
	OverlapAll OverlapPolicy = "ALL"
)

// ExclusionPolicy restricts the surviving record set to fault windows.
type ExclusionPolicy string

const (
	// ExclusionNone keeps all records within the configured time bounds.
	ExclusionNone ExclusionPolicy = "NONE"
	// ExclusionAll keeps only records inside a margin-expanded cluster span.
	ExclusionAll ExclusionPolicy = "ALL"
)

// Options carries raw, unparsed run settings as collected from the config
// file, PVA_* environment variables and CLI flags. Empty fields mean unset;
// Run applies built-in defaults.
type Options struct {
	Input      string `yaml:"input"`
	Kind       string `yaml:"kind"` // single-file mode source kind
	Output     string `yaml:"output"`
	DebugDir   string `yaml:"debug_dir"`
	Overlap    string `yaml:"overlap"`
	Exclusion  string `yaml:"exclusion"`
	Margin     string `yaml:"margin"`
	ClusterGap string `yaml:"cluster_gap"`
	MinTime    string `yaml:"min_time"`
	MaxTime    string `yaml:"max_time"`
	BaseDate   string `yaml:"base_date"`
	LogLevel   string `yaml:"log_level"`
}

// FromEnv returns Options populated from PVA_* environment variables.
// Unset variables leave fields empty.
func FromEnv() Options {
	return Options{
		Input:      os.Getenv("PVA_INPUT"),
		Kind:       os.Getenv("PVA_KIND"),
		Output:     os.Getenv("PVA_OUTPUT"),
		DebugDir:   os.Getenv("PVA_DEBUG_DIR"),
		Overlap:    os.Getenv("PVA_OVERLAP"),
		Exclusion:  os.Getenv("PVA_EXCLUSION"),
		Margin:     os.Getenv("PVA_MARGIN"),
		ClusterGap: os.Getenv("PVA_CLUSTER_GAP"),
		MinTime:    os.Getenv("PVA_MIN_TIME"),
		MaxTime:    os.Getenv("PVA_MAX_TIME"),
		BaseDate:   os.Getenv("PVA_BASE_DATE"),
		LogLevel:   os.Getenv("PVA_LOG_LEVEL"),
	}
}

// LoadFile reads Options from a YAML config file.
func LoadFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return o, nil
}

// Merge returns a copy of o with every non-empty field of over taking
// precedence.
func (o Options) Merge(over Options) Options {
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&o.Input, over.Input)
	merge(&o.Kind, over.Kind)
	merge(&o.Output, over.Output)
	merge(&o.DebugDir, over.DebugDir)
	merge(&o.Overlap, over.Overlap)
	merge(&o.Exclusion, over.Exclusion)
	merge(&o.Margin, over.Margin)
	merge(&o.ClusterGap, over.ClusterGap)
	merge(&o.MinTime, over.MinTime)
	merge(&o.MaxTime, over.MaxTime)
	merge(&o.BaseDate, over.BaseDate)
	merge(&o.LogLevel, over.LogLevel)
	return o
}

// Run is the immutable configuration for one processing run. Every stage
// receives it by value; nothing mutates it after validation.
type Run struct {
	Input      string           // file or directory path
	SingleKind model.SourceKind // source kind in single-file mode
	Output     string
	DebugDir   string // destination for normalized and debug tables
	Overlap    OverlapPolicy
	Exclusion  ExclusionPolicy
	Margin     time.Duration
	ClusterGap time.Duration // 0 → clusterer default
	MinTime    *time.Time
	MaxTime    *time.Time
	BaseDate   time.Time
}

// Run validates and converts the raw options into an immutable Run.
// All durations and time bounds are parsed here, before any file I/O;
// failures wrap ErrInvalidDuration.
func (o Options) Run() (Run, error) {
	var r Run

	if o.Input == "" {
		return r, errors.New("config: input path is required")
	}
	if o.Output == "" {
		return r, errors.New("config: output path is required")
	}
	r.Input = o.Input
	r.Output = o.Output

	r.SingleKind = model.KindRolling
	if o.Kind != "" {
		k, ok := model.ParseKind(o.Kind)
		if !ok {
			return r, fmt.Errorf("config: unknown source kind %q", o.Kind)
		}
		r.SingleKind = k
	}

	r.DebugDir = o.DebugDir
	if r.DebugDir == "" {
		r.DebugDir = filepath.Dir(o.Output)
	}

	r.Overlap = OverlapOnlyRecent
	if o.Overlap != "" {
		switch OverlapPolicy(o.Overlap) {
		case OverlapOnlyRecent, OverlapAll:
			r.Overlap = OverlapPolicy(o.Overlap)
		default:
			return r, fmt.Errorf("config: unknown overlap policy %q", o.Overlap)
		}
	}

	r.Exclusion = ExclusionNone
	if o.Exclusion != "" {
		switch ExclusionPolicy(o.Exclusion) {
		case ExclusionNone, ExclusionAll:
			r.Exclusion = ExclusionPolicy(o.Exclusion)
		default:
			return r, fmt.Errorf("config: unknown exclusion policy %q", o.Exclusion)
		}
	}

	var err error
	if r.Margin, err = parseDuration(o.Margin, "margin"); err != nil {
		return r, err
	}
	if r.ClusterGap, err = parseDuration(o.ClusterGap, "cluster gap"); err != nil {
		return r, err
	}
	if r.MinTime, err = parseBound(o.MinTime, "min time"); err != nil {
		return r, err
	}
	if r.MaxTime, err = parseBound(o.MaxTime, "max time"); err != nil {
		return r, err
	}
	if r.MinTime != nil && r.MaxTime != nil && r.MaxTime.Before(*r.MinTime) {
		return r, fmt.Errorf("config: max time %s precedes min time %s: %w",
			o.MaxTime, o.MinTime, ErrInvalidDuration)
	}

	base := o.BaseDate
	if base == "" {
		base = DefaultBaseDate
	}
	r.BaseDate, err = time.Parse(model.SCETLayout, base)
	if err != nil {
		return r, fmt.Errorf("config: base date %q: %w", base, ErrInvalidDuration)
	}

	return r, nil
}

func parseDuration(s, what string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s %q: %w", what, s, ErrInvalidDuration)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s %q is negative: %w", what, s, ErrInvalidDuration)
	}
	return d, nil
}

func parseBound(s, what string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(model.SCETLayout, s)
	if err != nil {
		return nil, fmt.Errorf("config: %s %q: %w", what, s, ErrInvalidDuration)
	}
	return &t, nil
}
