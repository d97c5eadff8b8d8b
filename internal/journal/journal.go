// Package journal keeps a SQLite record of expansions and hook restarts.
//
// Writes come from the keyboard worker and the replacement goroutine, which
// must never wait on disk. Records are queued on a buffered channel and
// written by a single goroutine; when the queue is full the record is
// dropped with a warning. Replacement text is never stored.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultQueueSize is the number of records buffered before drops begin.
const DefaultQueueSize = 256

// Expansion is one replacement attempt.
type Expansion struct {
	Timestamp    time.Time
	Abbreviation string
	Process      string
	Method       string // "rich" or "generic"
	Outcome      string // "ok", "clipboard_error" or "inject_error"
	Duration     time.Duration
}

// Restart is one hook session teardown.
type Restart struct {
	Timestamp time.Time
	SessionID string
	Reason    string // "stall", "refresh" or "exit"
	Process   string
}

type record struct {
	expansion *Expansion
	restart   *Restart
	flushed   chan struct{}
}

// Journal is an asynchronous SQLite journal.
type Journal struct {
	db     *sql.DB
	queue  chan record
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Open opens or creates the journal at path and starts the writer.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		db:     db,
		queue:  make(chan record, DefaultQueueSize),
		done:   make(chan struct{}),
		logger: logger.With("component", "journal"),
	}
	go j.writeLoop()
	return j, nil
}

// RecordExpansion queues an expansion record.
func (j *Journal) RecordExpansion(e Expansion) {
	j.enqueue(record{expansion: &e})
}

// RecordRestart queues a restart record.
func (j *Journal) RecordRestart(r Restart) {
	j.enqueue(record{restart: &r})
}

func (j *Journal) enqueue(r record) {
	if j == nil {
		return
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- r:
	default:
		j.logger.Warn("journal queue full, record dropped")
	}
}

// Flush blocks until every record queued before the call is written.
func (j *Journal) Flush() {
	ch := make(chan struct{})
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return
	}
	j.queue <- record{flushed: ch}
	j.mu.RUnlock()
	<-ch
}

func (j *Journal) writeLoop() {
	defer close(j.done)
	for r := range j.queue {
		switch {
		case r.flushed != nil:
			close(r.flushed)
		case r.expansion != nil:
			if err := j.insertExpansion(r.expansion); err != nil {
				j.logger.Warn("write expansion", "error", err)
			}
		case r.restart != nil:
			if err := j.insertRestart(r.restart); err != nil {
				j.logger.Warn("write restart", "error", err)
			}
		}
	}
}

func (j *Journal) insertExpansion(e *Expansion) error {
	_, err := j.db.Exec(`
		INSERT INTO expansions (timestamp_ns, abbreviation, process, method, outcome, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UnixNano(), e.Abbreviation, e.Process, e.Method, e.Outcome, int64(e.Duration),
	)
	if err != nil {
		return fmt.Errorf("insert expansion: %w", err)
	}
	return nil
}

func (j *Journal) insertRestart(r *Restart) error {
	_, err := j.db.Exec(`
		INSERT INTO hook_restarts (timestamp_ns, session_id, reason, process)
		VALUES (?, ?, ?, ?)`,
		r.Timestamp.UnixNano(), r.SessionID, r.Reason, r.Process,
	)
	if err != nil {
		return fmt.Errorf("insert restart: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close drains the queue and closes the database.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.queue)
		j.mu.Unlock()

		<-j.done
		err = j.db.Close()
	})
	return err
}
