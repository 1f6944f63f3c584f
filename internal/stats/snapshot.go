package stats

import (
	"maps"
	"slices"

	"github.com/tcassar-diss/syscount/internal/strace"
)

// Snapshot holds per-syscall statistics for a single trace session.
//
// Counts has an entry for every syscall seen. TotalTime only has entries for syscalls with at least one
// timed event, and Failures only for syscalls with at least one negative return value.
type Snapshot struct {
	Counts    map[string]int     `json:"counts"`
	TotalTime map[string]float64 `json:"total_time"`
	Failures  map[string]int     `json:"failures"`

	// order is the order in which syscall names were first folded in.
	order []string
	final bool
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Counts:    make(map[string]int),
		TotalTime: make(map[string]float64),
		Failures:  make(map[string]int),
	}
}

// Fold adds a single event to s and returns s.
//
// Folding into a finalized snapshot leaves it untouched.
func Fold(ev *strace.Event, s *Snapshot) *Snapshot {
	if s.final || ev == nil {
		return s
	}

	if _, ok := s.Counts[ev.Name]; !ok {
		s.order = append(s.order, ev.Name)
	}

	s.Counts[ev.Name]++

	if ev.Timed {
		s.TotalTime[ev.Name] += ev.Elapsed
	}

	if ev.Failed() {
		s.Failures[ev.Name]++
	}

	return s
}

// Finalize marks s as read-only. Calling it more than once is harmless.
func Finalize(s *Snapshot) *Snapshot {
	s.final = true
	return s
}

// Final reports whether s has been finalized.
func (s *Snapshot) Final() bool {
	return s.final
}

// Names returns syscall names in order of first appearance.
func (s *Snapshot) Names() []string {
	if len(s.order) == len(s.Counts) {
		return slices.Clone(s.order)
	}

	// Snapshots built by hand (e.g. decoded from json) carry no ordering.
	return slices.Sorted(maps.Keys(s.Counts))
}

// FailedNames returns the names of syscalls with at least one failure, in order of first appearance.
func (s *Snapshot) FailedNames() []string {
	var names []string

	for _, n := range s.Names() {
		if _, ok := s.Failures[n]; ok {
			names = append(names, n)
		}
	}

	return names
}

// Total is the number of events folded into s.
func (s *Snapshot) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}

	return total
}
