// Package history keeps an optional local journal of transcription runs.
// Nothing reads it back during a run.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Run struct {
	ID         uuid.UUID
	URL        string
	VideoID    string
	Status     string
	Stage      string
	ErrorClass string
	ExitCode   int
	AudioBytes int64
	Transcript string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	logrus.WithField("path", dbPath).Debug("Opening run history")

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "error creating directory for database")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening database")
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
                    id TEXT PRIMARY KEY,
                    url TEXT NOT NULL,
                    video_id TEXT NOT NULL DEFAULT '',
                    status TEXT NOT NULL,
                    stage TEXT NOT NULL DEFAULT '',
                    error_class TEXT NOT NULL DEFAULT '',
                    exit_code INTEGER NOT NULL DEFAULT 0,
                    audio_bytes INTEGER NOT NULL DEFAULT 0,
                    transcript TEXT,
                    started_at TIMESTAMP NOT NULL,
                    finished_at TIMESTAMP NOT NULL
)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error creating table")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	var transcript sql.NullString
	if run.Transcript != "" {
		transcript = sql.NullString{String: run.Transcript, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error beginning transaction")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO runs
        (id, url, video_id, status, stage, error_class, exit_code, audio_bytes, transcript, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "error preparing statement")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		run.ID.String(), run.URL, run.VideoID, run.Status, run.Stage, run.ErrorClass,
		run.ExitCode, run.AudioBytes, transcript, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "error executing statement")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "error committing transaction")
	}
	return nil
}

// Get loads a single run. It exists for inspection and tests.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		run        Run
		rawID      string
		transcript sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, url, video_id, status, stage, error_class,
        exit_code, audio_bytes, transcript, started_at, finished_at FROM runs WHERE id = ?`, id.String()).
		Scan(&rawID, &run.URL, &run.VideoID, &run.Status, &run.Stage, &run.ErrorClass,
			&run.ExitCode, &run.AudioBytes, &transcript, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Errorf("run %s not found", id)
		}
		return nil, errors.Wrap(err, "error querying database")
	}

	run.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt run id")
	}
	run.Transcript = transcript.String
	return &run, nil
}
