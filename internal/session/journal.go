package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
)

// Entry is one user-visible log line.
type Entry struct {
	Time    time.Time
	Level   domain.Level
	Message string
}

// Journal collects the lines shown in the Logs and Errors tabs and mirrors
// each of them to the structured log.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	errors  int
	log     zerolog.Logger
	now     func() time.Time
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{
		log: observability.Component("session"),
		now: time.Now,
	}
}

// Report appends a line.
func (j *Journal) Report(level domain.Level, msg string) {
	j.mu.Lock()
	j.entries = append(j.entries, Entry{Time: j.now(), Level: level, Message: msg})
	if level == domain.LevelError {
		j.errors++
	}
	j.mu.Unlock()

	safe := observability.RedactForLog(msg)
	switch level {
	case domain.LevelError:
		j.log.Error().Msg(safe)
	case domain.LevelWarn:
		j.log.Warn().Msg(safe)
	default:
		j.log.Info().Str("level", level.String()).Msg(safe)
	}
}

// Entries returns a copy of every line.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}

// Errors returns the error lines only.
func (j *Journal) Errors() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, 0, j.errors)
	for _, e := range j.entries {
		if e.Level == domain.LevelError {
			out = append(out, e)
		}
	}
	return out
}

// ErrorCount is the number of error lines recorded so far.
func (j *Journal) ErrorCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errors
}
