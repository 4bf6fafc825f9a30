package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/yyyoichi/floodsar/internal/kmeans"
)

// SQLite keeps a calibration in one database file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path. ":memory:" works for
// throwaway stores.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) SaveRun(ctx context.Context, run Run) error {
	dates, err := msgpack.Marshal(run.Dates)
	if err != nil {
		return err
	}
	elevations, err := msgpack.Marshal(run.Elevations)
	if err != nil {
		return err
	}
	var finished int64
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UnixNano()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, algorithm, seed, started_at, finished_at, dates, elevations, width, height, rows_per_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			dates = excluded.dates,
			elevations = excluded.elevations,
			width = excluded.width,
			height = excluded.height,
			rows_per_date = excluded.rows_per_date`,
		run.ID, run.Algorithm, run.Seed, run.StartedAt.UnixNano(), finished,
		dates, elevations, run.Width, run.Height, run.RowsPerDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *SQLite) LatestRun(ctx context.Context, algorithm string) (Run, error) {
	var (
		run               Run
		started, finished int64
		dates, elevations []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, algorithm, seed, started_at, finished_at, dates, elevations, width, height, rows_per_date
		FROM runs WHERE ? = '' OR algorithm = ?
		ORDER BY started_at DESC, rowid DESC LIMIT 1`, algorithm, algorithm,
	).Scan(&run.ID, &run.Algorithm, &run.Seed, &started, &finished,
		&dates, &elevations, &run.Width, &run.Height, &run.RowsPerDate)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: run %s", ErrNotFound, algorithm)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run: %w", err)
	}
	run.StartedAt = time.Unix(0, started).UTC()
	if finished != 0 {
		run.FinishedAt = time.Unix(0, finished).UTC()
	}
	if err := msgpack.Unmarshal(dates, &run.Dates); err != nil {
		return Run{}, err
	}
	if err := msgpack.Unmarshal(elevations, &run.Elevations); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *SQLite) SaveFit(ctx context.Context, fit Fit) error {
	centroids, err := msgpack.Marshal(fit.Centroids)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fits (k, centroids, labels) VALUES (?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET centroids = excluded.centroids, labels = excluded.labels`,
		fit.K, centroids, PackInts(fit.Labels),
	)
	if err != nil {
		return fmt.Errorf("failed to save fit: %w", err)
	}
	return nil
}

func (s *SQLite) LoadFit(ctx context.Context, k int) (Fit, error) {
	var centroids, labels []byte
	err := s.db.QueryRowContext(ctx, "SELECT centroids, labels FROM fits WHERE k = ?", k).Scan(&centroids, &labels)
	if errors.Is(err, sql.ErrNoRows) {
		return Fit{}, fmt.Errorf("%w: fit k=%d", ErrNotFound, k)
	}
	if err != nil {
		return Fit{}, fmt.Errorf("failed to query fit: %w", err)
	}
	fit := Fit{K: k}
	var cs []kmeans.Centroid
	if err := msgpack.Unmarshal(centroids, &cs); err != nil {
		return Fit{}, err
	}
	fit.Centroids = cs
	if fit.Labels, err = UnpackInts(labels); err != nil {
		return Fit{}, err
	}
	return fit, nil
}

func (s *SQLite) SaveFloodClasses(ctx context.Context, fc FloodClasses) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flood_classes (k, m, labels) VALUES (?, ?, ?)
		ON CONFLICT(k, m) DO UPDATE SET labels = excluded.labels`,
		fc.K, fc.M, PackInts(fc.Labels),
	)
	if err != nil {
		return fmt.Errorf("failed to save flood classes: %w", err)
	}
	return nil
}

func (s *SQLite) LoadFloodClasses(ctx context.Context, k, m int) (FloodClasses, error) {
	var labels []byte
	err := s.db.QueryRowContext(ctx, "SELECT labels FROM flood_classes WHERE k = ? AND m = ?", k, m).Scan(&labels)
	if errors.Is(err, sql.ErrNoRows) {
		return FloodClasses{}, fmt.Errorf("%w: flood classes k=%d m=%d", ErrNotFound, k, m)
	}
	if err != nil {
		return FloodClasses{}, fmt.Errorf("failed to query flood classes: %w", err)
	}
	fc := FloodClasses{K: k, M: m}
	fc.Labels, err = UnpackInts(labels)
	return fc, err
}

func (s *SQLite) SaveClusterBest(ctx context.Context, best ClusterBest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cluster_best (id, k, m, coefficient) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET k = excluded.k, m = excluded.m, coefficient = excluded.coefficient`,
		best.K, best.M, best.Coefficient,
	)
	if err != nil {
		return fmt.Errorf("failed to save cluster best: %w", err)
	}
	return nil
}

func (s *SQLite) LoadClusterBest(ctx context.Context) (ClusterBest, error) {
	var best ClusterBest
	err := s.db.QueryRowContext(ctx, "SELECT k, m, coefficient FROM cluster_best WHERE id = 1").
		Scan(&best.K, &best.M, &best.Coefficient)
	if errors.Is(err, sql.ErrNoRows) {
		return ClusterBest{}, fmt.Errorf("%w: cluster best", ErrNotFound)
	}
	if err != nil {
		return ClusterBest{}, fmt.Errorf("failed to query cluster best: %w", err)
	}
	return best, nil
}

func (s *SQLite) SaveThresholdBest(ctx context.Context, best ThresholdBest) error {
	dates, err := msgpack.Marshal(best.Dates)
	if err != nil {
		return err
	}
	lengths, decisions := PackDecisions(best.Decisions)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threshold_best (polarization, threshold, coefficient, dates, lengths, decisions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(polarization) DO UPDATE SET
			threshold = excluded.threshold,
			coefficient = excluded.coefficient,
			dates = excluded.dates,
			lengths = excluded.lengths,
			decisions = excluded.decisions`,
		best.Polarization, best.Threshold, best.Coefficient, dates, PackInts(lengths), decisions,
	)
	if err != nil {
		return fmt.Errorf("failed to save threshold best: %w", err)
	}
	return nil
}

func (s *SQLite) LoadThresholdBest(ctx context.Context, pol string) (ThresholdBest, error) {
	best := ThresholdBest{Polarization: pol}
	var dates, lengths, decisions []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT threshold, coefficient, dates, lengths, decisions
		FROM threshold_best WHERE polarization = ?`, pol,
	).Scan(&best.Threshold, &best.Coefficient, &dates, &lengths, &decisions)
	if errors.Is(err, sql.ErrNoRows) {
		return ThresholdBest{}, fmt.Errorf("%w: threshold best %s", ErrNotFound, pol)
	}
	if err != nil {
		return ThresholdBest{}, fmt.Errorf("failed to query threshold best: %w", err)
	}
	if err := msgpack.Unmarshal(dates, &best.Dates); err != nil {
		return ThresholdBest{}, err
	}
	n, err := UnpackInts(lengths)
	if err != nil {
		return ThresholdBest{}, err
	}
	if best.Decisions, err = UnpackDecisions(n, decisions); err != nil {
		return ThresholdBest{}, err
	}
	return best, nil
}

func (s *SQLite) SaveEvaluations(ctx context.Context, evals []Evaluation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO evaluations (kind, polarization, threshold, k, m, coefficient, defined, areas)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, polarization, threshold, k, m) DO UPDATE SET
			coefficient = excluded.coefficient,
			defined = excluded.defined,
			areas = excluded.areas`)
	if err != nil {
		return fmt.Errorf("failed to prepare evaluation insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range evals {
		coefficient := sql.NullFloat64{Float64: e.Coefficient, Valid: e.Defined}
		if _, err := stmt.ExecContext(ctx,
			string(e.Kind), e.Polarization, e.Threshold, e.K, e.M,
			coefficient, e.Defined, PackInts(e.Areas),
		); err != nil {
			return fmt.Errorf("failed to save evaluation: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Evaluations(ctx context.Context, kind Kind) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT polarization, threshold, k, m, coefficient, defined, areas
		FROM evaluations WHERE kind = ?
		ORDER BY polarization, threshold, k, m DESC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []Evaluation
	for rows.Next() {
		e := Evaluation{Kind: kind}
		var (
			coefficient sql.NullFloat64
			areas       []byte
		)
		if err := rows.Scan(&e.Polarization, &e.Threshold, &e.K, &e.M, &coefficient, &e.Defined, &areas); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		e.Coefficient = math.NaN()
		if coefficient.Valid {
			e.Coefficient = coefficient.Float64
		}
		if e.Areas, err = UnpackInts(areas); err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
