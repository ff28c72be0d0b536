// Package pgstore is the PostGIS index.Store.
package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/index"
)

var _ index.Store = (*Store)(nil)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

type Store struct {
	db    *sql.DB
	table string
	q     queries
	log   *slog.Logger
}

type Options struct {
	DSN      string
	MaxConns int
	Table    string
	Log      *slog.Logger
}

// Open connects and pings. A failed ping is a StoreConnection error.
func Open(ctx context.Context, opt Options) (*Store, error) {
	db, err := sql.Open("postgres", opt.DSN)
	if err != nil {
		return nil, errs.New(errs.KindStoreConnection, "open postgres", err)
	}
	if opt.MaxConns > 0 {
		db.SetMaxOpenConns(opt.MaxConns)
		db.SetMaxIdleConns(opt.MaxConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	s, err := New(db, opt.Table, opt.Log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, table string, log *slog.Logger) (*Store, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("pgstore: invalid table name %q", table)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, table: table, q: buildQueries(table), log: log}, nil
}

type queries struct {
	schema []string
	insert string
	find   string
}

func buildQueries(table string) queries {
	t := pq.QuoteIdentifier(table)
	idx := pq.QuoteIdentifier(table + "_object_gist")
	return queries{
		schema: []string{
			`CREATE EXTENSION IF NOT EXISTS postgis`,
			`DROP TABLE IF EXISTS ` + t,
			`CREATE TABLE ` + t + ` (
				id         SERIAL PRIMARY KEY,
				path       VARCHAR NOT NULL,
				resolution INTEGER NOT NULL CHECK (resolution > 0),
				object     GEOMETRY(Polygon, 4326) NOT NULL
			)`,
			`CREATE INDEX ` + idx + ` ON ` + t + ` USING GIST (object)`,
		},
		insert: `INSERT INTO ` + t + ` (path, resolution, object) VALUES ($1, $2, ST_GeomFromText($3, 4326)) RETURNING id`,
		find: `SELECT id, path, resolution, ST_AsBinary(object) FROM ` + t +
			` WHERE ST_Contains(object, ST_SetSRID(ST_MakePoint($1, $2), 4326))` +
			` ORDER BY resolution DESC, id ASC`,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.New(errs.KindStoreConnection, "ping postgres", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// RecreateSchema runs in one transaction; on failure the previous table is kept.
func (s *Store) RecreateSchema(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observability.ObserveStoreQuery("recreate_schema", err, time.Since(start).Seconds()) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.classify("begin recreate schema", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range s.q.schema {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return s.classify("recreate schema", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return s.classify("commit recreate schema", err)
	}
	s.log.Info("index schema recreated", "table", s.table)
	return nil
}

func (s *Store) Insert(ctx context.Context, rec model.FootprintRecord) (id int64, err error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { observability.ObserveStoreQuery("insert", err, time.Since(start).Seconds()) }()

	geom := wkt.MarshalString(rec.Footprint)
	if err = s.db.QueryRowContext(ctx, s.q.insert, rec.Path, rec.Resolution, geom).Scan(&id); err != nil {
		return 0, s.classify("insert "+rec.Path, err)
	}
	return id, nil
}

func (s *Store) FindContaining(ctx context.Context, p orb.Point) (out []model.FootprintRecord, err error) {
	start := time.Now()
	defer func() { observability.ObserveStoreQuery("find_containing", err, time.Since(start).Seconds()) }()

	rows, err := s.db.QueryContext(ctx, s.q.find, p.Lon(), p.Lat())
	if err != nil {
		return nil, s.classify("find containing", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec  model.FootprintRecord
			poly orb.Polygon
		)
		if err = rows.Scan(&rec.ID, &rec.Path, &rec.Resolution, wkb.Scanner(&poly)); err != nil {
			return nil, errs.New(errs.KindStoreQuery, "scan footprint", err)
		}
		rec.Footprint = poly
		out = append(out, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, s.classify("find containing", err)
	}
	return out, nil
}

// classify tags connection-level failures apart from rejected statements.
func (s *Store) classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return errs.New(errs.KindStoreConnection, op, err)
		}
		return errs.New(errs.KindStoreQuery, fmt.Sprintf("%s (%s)", op, pqErr.Code.Name()), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.KindStoreQuery, op, err)
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return errs.New(errs.KindStoreConnection, op, err)
	}
	return errs.New(errs.KindStoreQuery, op, err)
}
