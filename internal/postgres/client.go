package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/worksphere/billing/internal/config"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// IClient is the transaction boundary used by services
type IClient interface {
	// WithTx runs fn inside a transaction carried by ctx. Nested calls join
	// the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Client struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewDB opens a lib/pq connection pool
func NewDB(cfg *config.Configuration, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to open postgres connection").
			Mark(ierr.ErrDatabase)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, ierr.WithError(err).
			WithHintf("Failed to reach postgres at %s:%d", cfg.Postgres.Host, cfg.Postgres.Port).
			Mark(ierr.ErrDatabase)
	}
	log.Infow("connected to postgres", "host", cfg.Postgres.Host, "db", cfg.Postgres.DBName)
	return db, nil
}

func NewClient(db *sql.DB, log *logger.Logger) *Client {
	return &Client{db: db, logger: log}
}

func (c *Client) DB() *sql.DB {
	return c.db
}

// TxFromContext returns the transaction started by WithTx, if any
func (c *Client) TxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(types.CtxDBTransaction).(*sql.Tx)
	return tx
}

// Querier returns the transaction in ctx or the pool
func (c *Client) Querier(ctx context.Context) Querier {
	if tx := c.TxFromContext(ctx); tx != nil {
		return tx
	}
	return c.db
}

func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if c.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to start transaction").
			Mark(ierr.ErrDatabase)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.logger.Errorw("failed to rollback transaction", "error", rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = ierr.WithError(cErr).
				WithHint("Failed to commit transaction").
				Mark(ierr.ErrDatabase)
		}
	}()

	return fn(context.WithValue(ctx, types.CtxDBTransaction, tx))
}

// Migrate applies the embedded schema. Statements are idempotent.
func (c *Client) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		stmt, err := migrations.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return err
		}
		if _, err := c.db.ExecContext(ctx, string(stmt)); err != nil {
			return ierr.WithError(err).
				WithHint(fmt.Sprintf("Failed to apply migration %s", entry.Name())).
				Mark(ierr.ErrDatabase)
		}
		c.logger.Infow("applied migration", "file", entry.Name())
	}
	return nil
}

// dbError classifies a driver error
func dbError(err error, hint string, details map[string]interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	}
	if isUniqueViolation(err) {
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(ierr.ErrDatabase)
}

func requireAffected(res sql.Result, hint string, details map[string]interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, hint, details)
	}
	if n == 0 {
		return dbError(sql.ErrNoRows, hint, details)
	}
	return nil
}
