package history

import (
	"context"
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// SQLiteStore keeps epoch rows in an SQLite database through the pure-Go
// modernc.org/sqlite driver. It is safe for concurrent use.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore returns a store for the database file at path. Init opens it.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the epochs table if needed.
// Calling it again on an open store does nothing.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return errors.Wrapf(err, "open history db %s", s.path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrapf(err, "open history db %s", s.path)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return errors.Wrap(err, "create history tables")
	}

	s.db = db
	return nil
}

// SaveEpoch inserts row, replacing an existing row for the same run and epoch.
func (s *SQLiteStore) SaveEpoch(ctx context.Context, row Row) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO epochs (
			run_id, epoch,
			train_loss, train_masked_loss, train_unmasked_loss,
			val_loss, val_masked_loss, val_unmasked_loss,
			learning_rate, grad_norm, skipped_batches, improved, duration_seconds
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, epoch) DO UPDATE SET
			train_loss = excluded.train_loss,
			train_masked_loss = excluded.train_masked_loss,
			train_unmasked_loss = excluded.train_unmasked_loss,
			val_loss = excluded.val_loss,
			val_masked_loss = excluded.val_masked_loss,
			val_unmasked_loss = excluded.val_unmasked_loss,
			learning_rate = excluded.learning_rate,
			grad_norm = excluded.grad_norm,
			skipped_batches = excluded.skipped_batches,
			improved = excluded.improved,
			duration_seconds = excluded.duration_seconds
	`, row.RunID, row.Epoch,
		row.TrainLoss, row.TrainMaskedLoss, row.TrainUnmaskedLoss,
		row.ValLoss, row.ValMaskedLoss, row.ValUnmaskedLoss,
		row.LearningRate, row.GradNorm, row.SkippedBatches, row.Improved, row.DurationSeconds)
	if err != nil {
		return errors.Wrapf(err, "save epoch %d of run %s", row.Epoch, row.RunID)
	}
	return nil
}

// GetRun returns the rows of runID ordered by epoch. ok is false when the
// run has no rows.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) ([]Row, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rs, err := db.QueryContext(ctx, `
		SELECT run_id, epoch,
			train_loss, train_masked_loss, train_unmasked_loss,
			val_loss, val_masked_loss, val_unmasked_loss,
			learning_rate, grad_norm, skipped_batches, improved, duration_seconds
		FROM epochs WHERE run_id = ? ORDER BY epoch
	`, runID)
	if err != nil {
		return nil, false, errors.Wrapf(err, "query run %s", runID)
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		var r Row
		if err := rs.Scan(&r.RunID, &r.Epoch,
			&r.TrainLoss, &r.TrainMaskedLoss, &r.TrainUnmaskedLoss,
			&r.ValLoss, &r.ValMaskedLoss, &r.ValUnmaskedLoss,
			&r.LearningRate, &r.GradNorm, &r.SkippedBatches, &r.Improved, &r.DurationSeconds); err != nil {
			return nil, false, errors.Wrapf(err, "scan run %s", runID)
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, false, errors.Wrapf(err, "query run %s", runID)
	}
	return rows, len(rows) > 0, nil
}

// Close closes the database. The store can be opened again with Init.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS epochs (
			run_id TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			train_loss REAL NOT NULL,
			train_masked_loss REAL NOT NULL,
			train_unmasked_loss REAL NOT NULL,
			val_loss REAL NOT NULL,
			val_masked_loss REAL NOT NULL,
			val_unmasked_loss REAL NOT NULL,
			learning_rate REAL NOT NULL,
			grad_norm REAL NOT NULL,
			skipped_batches INTEGER NOT NULL,
			improved INTEGER NOT NULL,
			duration_seconds REAL NOT NULL,
			PRIMARY KEY (run_id, epoch)
		);
	`)
	return err
}
