package session

import "time"

// MatchMonitor receives notifications about match progress and outcomes. Calls
// are made from the coordinator goroutine and must not block.
type MatchMonitor interface {
	// OnMatchStart is called when the second player joins and game_start is sent.
	OnMatchStart(start MatchStart)

	// OnMatchComplete is called after both players report and a winner is chosen.
	OnMatchComplete(result MatchResult)

	// OnMatchAbandoned is called when a player leaves a match in progress.
	OnMatchAbandoned(abandoned MatchAbandoned)
}

// MatchStart describes a match that has just begun.
type MatchStart struct {
	MatchID   string
	Seed      int64
	Players   []string
	StartedAt time.Time
}

// MatchResult describes a match decided by arbitration.
type MatchResult struct {
	MatchID    string
	Seed       int64
	Winner     string
	Times      map[string]string
	Fallback   bool // a reported time failed to parse
	StartedAt  time.Time
	FinishedAt time.Time
}

// MatchAbandoned describes a match cut short by a disconnect.
type MatchAbandoned struct {
	MatchID   string
	Seed      int64
	Player    string // the player who left
	StartedAt time.Time
	EndedAt   time.Time
	Reason    error
}

// NullMonitor is a no-op implementation.
type NullMonitor struct{}

func (NullMonitor) OnMatchStart(MatchStart)         {}
func (NullMonitor) OnMatchComplete(MatchResult)     {}
func (NullMonitor) OnMatchAbandoned(MatchAbandoned) {}

// MultiMonitor fans events out to multiple monitors.
type MultiMonitor struct {
	monitors []MatchMonitor
}

// NewMultiMonitor builds a composite monitor, pruning nil entries and returning
// a NullMonitor when none remain.
func NewMultiMonitor(monitors ...MatchMonitor) MatchMonitor {
	filtered := make([]MatchMonitor, 0, len(monitors))
	for _, monitor := range monitors {
		if monitor != nil {
			filtered = append(filtered, monitor)
		}
	}

	switch len(filtered) {
	case 0:
		return NullMonitor{}
	case 1:
		return filtered[0]
	default:
		return MultiMonitor{monitors: filtered}
	}
}

func (m MultiMonitor) OnMatchStart(start MatchStart) {
	for _, monitor := range m.monitors {
		monitor.OnMatchStart(start)
	}
}

func (m MultiMonitor) OnMatchComplete(result MatchResult) {
	for _, monitor := range m.monitors {
		monitor.OnMatchComplete(result)
	}
}

func (m MultiMonitor) OnMatchAbandoned(abandoned MatchAbandoned) {
	for _, monitor := range m.monitors {
		monitor.OnMatchAbandoned(abandoned)
	}
}
