package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claytondukes/dibo-gems/internal/domain"
)

// GemSource is anything that can enumerate a full catalog, such as the file store.
type GemSource interface {
	All(ctx context.Context) ([]domain.Gem, error)
}

type GemRepository struct {
	pool *pgxpool.Pool
}

func NewGemRepository(pool *pgxpool.Pool) *GemRepository {
	return &GemRepository{pool: pool}
}

// WithTx runs fn in a read-committed transaction shared by every
// repository call made with the context it receives.
func (r *GemRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return inTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (r *GemRepository) List(ctx context.Context) ([]domain.GemSummary, error) {
	gems, err := r.all(ctx, "list gems")
	if err != nil {
		return nil, err
	}
	out := make([]domain.GemSummary, 0, len(gems))
	for _, g := range gems {
		out = append(out, g.Summary(""))
	}
	return out, nil
}

func (r *GemRepository) Get(ctx context.Context, key domain.ItemKey) (domain.Gem, error) {
	const query = `SELECT document FROM gems WHERE item_key = $1`

	var doc []byte
	if err := r.queryRow(ctx, query, key.String()).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Gem{}, domain.ErrGemNotFound
		}
		return domain.Gem{}, fmt.Errorf("get gem: %w", err)
	}
	return decodeGem(key.String(), doc)
}

// Put replaces the stored document for key. The row is locked for the
// duration of the update so concurrent writers apply in sequence.
func (r *GemRepository) Put(ctx context.Context, key domain.ItemKey, gem domain.Gem) error {
	doc, err := json.Marshal(gem)
	if err != nil {
		return fmt.Errorf("encode gem: %w", err)
	}

	return r.WithTx(ctx, func(txCtx context.Context) error {
		const lockQuery = `SELECT 1 FROM gems WHERE item_key = $1 FOR UPDATE`
		var one int
		if err := r.queryRow(txCtx, lockQuery, key.String()).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrGemNotFound
			}
			return fmt.Errorf("lock gem: %w", err)
		}

		const stmt = `
UPDATE gems
SET tier = $2, name = $3, document = $4, updated_at = NOW()
WHERE item_key = $1`
		if _, err := r.exec(txCtx, stmt, key.String(), int(key.Tier), gem.Name, doc); err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("%w: %v", domain.ErrInvalidGem, err)
			}
			return fmt.Errorf("update gem: %w", err)
		}
		return nil
	})
}

func (r *GemRepository) All(ctx context.Context) ([]domain.Gem, error) {
	return r.all(ctx, "list gem documents")
}

// Import upserts every gem from src and returns how many were written.
func (r *GemRepository) Import(ctx context.Context, src GemSource) (int, error) {
	gems, err := src.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("read source catalog: %w", err)
	}

	const stmt = `
INSERT INTO gems (item_key, tier, name, document)
VALUES ($1, $2, $3, $4)
ON CONFLICT (item_key) DO UPDATE
SET tier = EXCLUDED.tier, name = EXCLUDED.name, document = EXCLUDED.document, updated_at = NOW()`

	imported := 0
	err = r.WithTx(ctx, func(txCtx context.Context) error {
		for _, g := range gems {
			key, err := g.Key()
			if err != nil {
				return fmt.Errorf("import %q: %w", g.Name, err)
			}
			doc, err := json.Marshal(g)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			if _, err := r.exec(txCtx, stmt, key.String(), int(key.Tier), g.Name, doc); err != nil {
				return fmt.Errorf("import %s: %w", key, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

func (r *GemRepository) all(ctx context.Context, op string) ([]domain.Gem, error) {
	const query = `SELECT item_key, document FROM gems ORDER BY tier, name`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Gem
	for rows.Next() {
		var (
			key string
			doc []byte
		)
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		gem, err := decodeGem(key, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, gem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func decodeGem(key string, doc []byte) (domain.Gem, error) {
	var gem domain.Gem
	if err := json.Unmarshal(doc, &gem); err != nil {
		return domain.Gem{}, fmt.Errorf("%w: %s: %v", domain.ErrCorruptGem, key, err)
	}
	return gem, nil
}

func (r *GemRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *GemRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *GemRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
