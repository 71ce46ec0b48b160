package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/claytondukes/dibo-gems/internal/domain"
	"github.com/claytondukes/dibo-gems/internal/testutil"
)

func ptr(v float64) *float64 { return &v }

func testGem(tier domain.Tier, name string) domain.Gem {
	return domain.Gem{
		Name:        name,
		Stars:       tier,
		Description: name,
		Ranks: map[string]domain.Rank{
			"1": {Effects: []domain.Effect{{Type: domain.EffectStat, Description: "+8% damage", Value: ptr(8)}}},
		},
		Metadata: domain.Metadata{Version: "1.0"},
	}
}

type staticSource []domain.Gem

func (s staticSource) All(ctx context.Context) ([]domain.Gem, error) { return s, nil }

func newRepo(t *testing.T) (*GemRepository, context.Context) {
	t.Helper()
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ResetGems(t, ctx, pool)
	return NewGemRepository(pool), ctx
}

func TestGemRepository_GetAndList(t *testing.T) {
	repo, ctx := newRepo(t)
	key := testutil.SeedGems(t, ctx, repo.pool, testGem(2, "Berserker's Eye"), testGem(1, "Chained Death"))[0]

	gem, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gem.Name != "Berserker's Eye" || gem.Stars != 2 {
		t.Fatalf("unexpected gem %+v", gem)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Chained Death" {
		t.Fatalf("unexpected list %+v", list)
	}

	missing, _ := domain.NewItemKey(5, "Nope")
	if _, err := repo.Get(ctx, missing); !errors.Is(err, domain.ErrGemNotFound) {
		t.Fatalf("expected ErrGemNotFound, got %v", err)
	}
}

func TestGemRepository_Put(t *testing.T) {
	repo, ctx := newRepo(t)
	key := testutil.SeedGems(t, ctx, repo.pool, testGem(2, "Berserker's Eye"))[0]

	updated := testGem(2, "Berserker's Eye")
	updated.Description = "Edited"
	if err := repo.Put(ctx, key, updated); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != "Edited" {
		t.Fatalf("expected edited description, got %q", got.Description)
	}

	missing, _ := domain.NewItemKey(5, "Nope")
	if err := repo.Put(ctx, missing, testGem(5, "Nope")); !errors.Is(err, domain.ErrGemNotFound) {
		t.Fatalf("expected ErrGemNotFound, got %v", err)
	}
}

func TestGemRepository_ConcurrentPuts(t *testing.T) {
	repo, ctx := newRepo(t)
	key := testutil.SeedGems(t, ctx, repo.pool, testGem(1, "Chained Death"))[0]

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Put(ctx, key, testGem(1, "Chained Death"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("put: %v", err)
		}
	}
}

func TestGemRepository_Import(t *testing.T) {
	repo, ctx := newRepo(t)
	testutil.SeedGems(t, ctx, repo.pool, testGem(1, "Chained Death"))

	src := staticSource{testGem(1, "Chained Death"), testGem(5, "Blood-Soaked Jade")}
	n, err := repo.Import(ctx, src)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 imported, got %d", n)
	}

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 gems after upsert, got %d", len(all))
	}
}
