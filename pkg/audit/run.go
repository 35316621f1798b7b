package audit

import (
	"sync/atomic"
	"time"

	"github.com/hostaudit/hostaudit/pkg/artifact"
	"github.com/hostaudit/hostaudit/pkg/sections"
)

// Status is the lifecycle state of a run.
type Status int

const (
	StatusPending Status = iota
	StatusCollecting
	StatusParsed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCollecting:
		return "collecting"
	case StatusParsed:
		return "parsed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Metadata describes where and how long a run executed.
type Metadata struct {
	Timestamp time.Time     `json:"timestamp"`
	Hostname  string        `json:"hostname"`
	Duration  time.Duration `json:"-"`
}

// DurationSeconds is Duration as fractional seconds.
func (m Metadata) DurationSeconds() float64 { return m.Duration.Seconds() }

// Run is one execution of the inspection script. The Controller fills it in
// and hands it out only once it is Parsed; from then on it is read-only.
type Run struct {
	ID        string
	CreatedAt time.Time
	Status    Status
	Sections  *sections.Set
	Metadata  Metadata

	raw     artifact.Handle
	claimed atomic.Bool
}

// RawRef returns the name of the raw output artifact, safe to log.
func (r *Run) RawRef() string { return r.raw.Name() }

// claim hands the run's artifacts to exactly one owner: a report fetch,
// an explicit discard, expiry, or shutdown.
func (r *Run) claim() bool { return r.claimed.CompareAndSwap(false, true) }
