// Package history keeps an SQLite log of every command the agent ran.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"cloudlab-agent/internal/pkg/agent"
)

// Entry is one recorded execution.
type Entry struct {
	ID         int64         `json:"id" yaml:"id"`
	Node       string        `json:"node" yaml:"node"`
	Command    string        `json:"command" yaml:"command"`
	ExitStatus int           `json:"exitStatus" yaml:"exit_status"`
	Stdout     string        `json:"stdout" yaml:"stdout"`
	Stderr     string        `json:"stderr" yaml:"stderr"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	At         time.Time     `json:"at" yaml:"at"`
}

// Store implements agent.Recorder on top of SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ agent.Recorder = (*Store)(nil)

// Open opens the database at path and creates the runs table if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	// concurrent dispatch records from many goroutines; sqlite takes one writer
	db.SetMaxOpenConns(1)

	createTable := `CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		node TEXT NOT NULL,
		command TEXT NOT NULL,
		exit_status INTEGER NOT NULL,
		stdout TEXT NOT NULL DEFAULT '',
		stderr TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL,
		at DATETIME NOT NULL
	);`
	if _, err := db.ExecContext(context.Background(), createTable); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to create runs table: %v; also failed to close db: %w", err, cerr)
		}
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Record(ctx context.Context, cmd string, res *agent.CommandResult) error {
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (node, command, exit_status, stdout, stderr, error, duration_ns, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Node, strings.TrimSpace(cmd), res.ExitStatus,
		strings.Join(res.Stdout, "\n"), strings.Join(res.Stderr, "\n"), errText,
		int64(res.Duration), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty node matches
// every node.
func (s *Store) Recent(ctx context.Context, node string, limit int) (entries []Entry, err error) {
	query := `SELECT id, node, command, exit_status, stdout, stderr, error, duration_ns, at FROM runs`
	args := []any{}
	if node != "" {
		query += ` WHERE node = ?`
		args = append(args, node)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var (
			e  Entry
			ns int64
		)
		if err := rows.Scan(&e.ID, &e.Node, &e.Command, &e.ExitStatus, &e.Stdout, &e.Stderr, &e.Error, &ns, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		e.Duration = time.Duration(ns)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error: %w", err)
	}
	return entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
