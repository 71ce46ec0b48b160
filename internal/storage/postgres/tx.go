package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the repository maps to domain errors.
const (
	sqlStateCheckViolation = "23514"
	sqlStateNotNull        = "23502"
)

type txKey struct{}

// inTx runs fn inside a transaction carried on the context. A nested call
// joins the outer transaction instead of opening a second one.
func inTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return pgx.BeginTxFunc(ctx, pool, opts, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isConstraintViolation reports whether the database rejected a row that
// Gem.Validate should have caught.
func isConstraintViolation(err error) bool {
	switch sqlState(err) {
	case sqlStateCheckViolation, sqlStateNotNull:
		return true
	}
	return false
}
