package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"quoteflow/common"
	"quoteflow/srv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var tracer = otel.Tracer("quoteflow/srv/sqlite")

var _ srv.Storage = (*Storage)(nil)

type Storage struct {
	db *Client
}

func NewStorage(db *Client) *Storage {
	return &Storage{db: db}
}

// NewDefaultStorage opens (and migrates) the database in the quoteflow data
// home.
func NewDefaultStorage() (*Storage, error) {
	dataHome, err := common.GetDataHome()
	if err != nil {
		return nil, err
	}

	client, err := NewClient(filepath.Join(dataHome, "quoteflow.db"))
	if err != nil {
		return nil, err
	}

	storage := NewStorage(client)
	if err := storage.MigrateUp("quoteflow"); err != nil {
		client.Close()
		return nil, err
	}
	return storage, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) CheckConnection(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation", operation),
	)
	span.SetAttributes(attrs...)
	return ctx, span
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// notFoundOr maps sql.ErrNoRows onto common.ErrNotFound, wrapping anything
// else with the failed action.
func notFoundOr(err error, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
