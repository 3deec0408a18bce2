// Package audit writes finalized rounds and integrity faults to an
// append-only, size-rotated log.
package audit

import (
	"encoding/json"
	"io"
	"log"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Starzy87/stake-mines-backend/internal/session"
)

// Options configures the rotating file.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Log is a session.Auditor. Each entry is one JSON object per line.
type Log struct {
	mu     sync.Mutex
	logger *log.Logger
	closer io.Closer
}

// Open writes to a lumberjack rotated file at opts.Path.
func Open(opts Options) *Log {
	rotate := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	l := New(rotate)
	l.closer = rotate
	return l
}

// New writes entries to w.
func New(w io.Writer) *Log {
	return &Log{logger: log.New(w, "", log.LstdFlags|log.LUTC|log.Lmicroseconds)}
}

type roundEntry struct {
	Event string `json:"event"`
	session.Record
}

type integrityEntry struct {
	Event    string `json:"event"`
	PlayerID string `json:"player_id"`
	Op       string `json:"op"`
	Error    string `json:"error"`
}

// Round logs a finalized round with its disclosed seed.
func (l *Log) Round(rec session.Record) {
	l.write(roundEntry{Event: "round", Record: rec})
}

// Integrity logs an integrity fault.
func (l *Log) Integrity(playerID, op string, err error) {
	l.write(integrityEntry{Event: "integrity", PlayerID: playerID, Op: op, Error: err.Error()})
}

func (l *Log) write(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(`{"event":"encode_error"}`)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(string(b))
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
