package app

import (
	"context"
	"sort"
	"sync"

	"github.com/claytondukes/dibo-gems/internal/domain"
)

type fakeGemRepo struct {
	mu     sync.Mutex
	gems   map[domain.ItemKey]domain.Gem
	puts   int
	putErr error
}

func newFakeGemRepo(gems ...domain.Gem) *fakeGemRepo {
	repo := &fakeGemRepo{gems: make(map[domain.ItemKey]domain.Gem)}
	for _, g := range gems {
		key, err := g.Key()
		if err != nil {
			panic(err)
		}
		repo.gems[key] = g
	}
	return repo
}

func (r *fakeGemRepo) List(ctx context.Context) ([]domain.GemSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.GemSummary, 0, len(r.gems))
	for _, g := range r.gems {
		out = append(out, g.Summary(""))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

func (r *fakeGemRepo) Get(ctx context.Context, key domain.ItemKey) (domain.Gem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gems[key]
	if !ok {
		return domain.Gem{}, domain.ErrGemNotFound
	}
	return g, nil
}

func (r *fakeGemRepo) Put(ctx context.Context, key domain.ItemKey, gem domain.Gem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return r.putErr
	}
	if _, ok := r.gems[key]; !ok {
		return domain.ErrGemNotFound
	}
	r.gems[key] = gem
	r.puts++
	return nil
}

func (r *fakeGemRepo) All(ctx context.Context) ([]domain.Gem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Gem, 0, len(r.gems))
	for _, g := range r.gems {
		out = append(out, g)
	}
	return out, nil
}

func ptr(v float64) *float64 { return &v }

func sampleGem(tier domain.Tier, name string) domain.Gem {
	return domain.Gem{
		Name:        name,
		Stars:       tier,
		Description: name + " description",
		Ranks: map[string]domain.Rank{
			"1": {Effects: []domain.Effect{{
				Type:        domain.EffectStat,
				Description: "Increases damage by 8%",
				Value:       ptr(8),
			}}},
		},
		Metadata: domain.Metadata{Version: "1.0", LastUpdated: "2024-01-01T00:00:00Z"},
	}
}

func mustKey(tier domain.Tier, name string) domain.ItemKey {
	key, err := domain.NewItemKey(tier, name)
	if err != nil {
		panic(err)
	}
	return key
}
