package strace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoMatch is returned for any line that is not a syscall-completion record.
//
// Callers are expected to skip such lines: signal notices, exit banners and
// unfinished/resumed halves all end up here.
var ErrNoMatch = errors.New("not a syscall completion record")

// UnresolvedMarker is what strace prints instead of a return value it could not determine.
const UnresolvedMarker = "?"

// Event is a single completed system call as reported by `strace -T`.
type Event struct {
	Name string

	// Return is only meaningful when Unresolved is false. Values beyond int64 are clamped.
	Return     int64
	Unresolved bool

	// Negative is set when the return token carried a leading '-', including "-0".
	Negative bool

	// Elapsed is the time spent in the kernel, in seconds. Only meaningful when Timed is true.
	Elapsed float64
	Timed   bool
}

// Failed reports whether the call returned a negative value. An unresolved return is never a failure.
func (e *Event) Failed() bool {
	return !e.Unresolved && (e.Negative || e.Return < 0)
}

func (e *Event) String() string {
	ret := UnresolvedMarker
	if !e.Unresolved {
		ret = strconv.FormatInt(e.Return, 10)
		if e.Negative && e.Return == 0 {
			ret = "-0"
		}
	}

	if !e.Timed {
		return fmt.Sprintf("%s() = %s <>", e.Name, ret)
	}

	return fmt.Sprintf("%s() = %s <%.6f>", e.Name, ret, e.Elapsed)
}

// Parse extracts an Event from one line of strace output.
//
// The only error Parse returns is ErrNoMatch (possibly wrapped).
func Parse(line string) (*Event, error) {
	res := LineRegex.FindStringSubmatch(line)

	if len(res) != 5 {
		return nil, fmt.Errorf("%w: regex didn't match", ErrNoMatch)
	}

	ev := Event{Name: res[1]}

	if res[3] == UnresolvedMarker {
		ev.Unresolved = true
	} else {
		// ParseInt clamps to the int64 range alongside ErrRange, which is good enough for a statistic
		ret, err := strconv.ParseInt(res[3], 10, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%w: bad return value %q: %w", ErrNoMatch, res[3], err)
		}

		ev.Return = ret
		ev.Negative = strings.HasPrefix(res[3], "-")
	}

	if res[4] != "" {
		elapsed, err := strconv.ParseFloat(res[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad elapsed time %q: %w", ErrNoMatch, res[4], err)
		}

		ev.Elapsed = elapsed
		ev.Timed = true
	}

	return &ev, nil
}
