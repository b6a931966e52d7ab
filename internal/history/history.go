// Package history keeps a record of recent match outcomes.
package history

import (
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/mineduel/internal/fileutil"
	"github.com/lox/mineduel/internal/session"
)

// DefaultSize is the number of matches retained when no size is configured.
const DefaultSize = 50

// Outcome is how a match ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAbandoned Outcome = "abandoned"
)

// Entry records one finished or abandoned match.
type Entry struct {
	MatchID   string            `json:"match_id"`
	Outcome   Outcome           `json:"outcome"`
	Seed      int64             `json:"seed"`
	Winner    string            `json:"winner,omitempty"`
	Times     map[string]string `json:"times,omitempty"`
	Fallback  bool              `json:"fallback,omitempty"`
	LeftBy    string            `json:"left_by,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
}

// Summary is the persisted and reported view of the history.
type Summary struct {
	Started   int     `json:"started"`
	Completed int     `json:"completed"`
	Abandoned int     `json:"abandoned"`
	Recent    []Entry `json:"recent"`
}

// Recorder is a session.MatchMonitor that keeps the most recent matches in
// memory and optionally mirrors them to a JSON file.
type Recorder struct {
	logger *log.Logger
	size   int
	file   string

	mu      sync.RWMutex
	summary Summary
}

var _ session.MatchMonitor = (*Recorder)(nil)

// NewRecorder returns a recorder keeping up to size entries. An empty file
// disables persistence.
func NewRecorder(logger *log.Logger, size int, file string) *Recorder {
	if size <= 0 {
		size = DefaultSize
	}
	return &Recorder{
		logger:  logger.WithPrefix("history"),
		size:    size,
		file:    file,
		summary: Summary{Recent: []Entry{}},
	}
}

// Load restores counters and entries from the history file, if there is one.
func (r *Recorder) Load() error {
	if r.file == "" {
		return nil
	}

	var loaded Summary
	ok, err := fileutil.ReadJSON(r.file, &loaded)
	if err != nil || !ok {
		return err
	}
	if loaded.Recent == nil {
		loaded.Recent = []Entry{}
	}
	if over := len(loaded.Recent) - r.size; over > 0 {
		loaded.Recent = loaded.Recent[over:]
	}

	r.mu.Lock()
	r.summary = loaded
	r.mu.Unlock()

	r.logger.Info("Loaded match history", "file", r.file, "completed", loaded.Completed, "abandoned", loaded.Abandoned)
	return nil
}

// Summary returns a copy of the counters and recent entries, oldest first.
func (r *Recorder) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.summary
	out.Recent = slices.Clone(r.summary.Recent)
	return out
}

func (r *Recorder) OnMatchStart(start session.MatchStart) {
	r.mu.Lock()
	r.summary.Started++
	r.mu.Unlock()

	r.logger.Debug("Match started", "match", start.MatchID, "seed", start.Seed, "players", start.Players)
}

func (r *Recorder) OnMatchComplete(result session.MatchResult) {
	r.record(Entry{
		MatchID:   result.MatchID,
		Outcome:   OutcomeCompleted,
		Seed:      result.Seed,
		Winner:    result.Winner,
		Times:     result.Times,
		Fallback:  result.Fallback,
		StartedAt: result.StartedAt,
		EndedAt:   result.FinishedAt,
	})
}

func (r *Recorder) OnMatchAbandoned(abandoned session.MatchAbandoned) {
	r.record(Entry{
		MatchID:   abandoned.MatchID,
		Outcome:   OutcomeAbandoned,
		Seed:      abandoned.Seed,
		LeftBy:    abandoned.Player,
		StartedAt: abandoned.StartedAt,
		EndedAt:   abandoned.EndedAt,
	})
}

func (r *Recorder) record(entry Entry) {
	r.mu.Lock()
	switch entry.Outcome {
	case OutcomeCompleted:
		r.summary.Completed++
	case OutcomeAbandoned:
		r.summary.Abandoned++
	}
	r.summary.Recent = append(r.summary.Recent, entry)
	if over := len(r.summary.Recent) - r.size; over > 0 {
		r.summary.Recent = slices.Delete(r.summary.Recent, 0, over)
	}
	snapshot := r.summary
	snapshot.Recent = slices.Clone(r.summary.Recent)
	r.mu.Unlock()

	r.logger.Info("Recorded match", "match", entry.MatchID, "outcome", entry.Outcome, "winner", entry.Winner)

	if r.file == "" {
		return
	}
	if err := fileutil.WriteJSON(r.file, snapshot, 0o644); err != nil {
		r.logger.Error("Failed to persist match history", "file", r.file, "error", err)
	}
}
