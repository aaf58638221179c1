package vault

import (
	"context"
	"fmt"
	"io"

	"github.com/vaultestim/vaultestim/internal/charts"
	"github.com/vaultestim/vaultestim/internal/progress"
)

// ProgressFacade computes set completion for a user.
type ProgressFacade struct {
	services   *Services
	collection *CollectionFacade
}

// NewProgressFacade creates a new ProgressFacade with the given services.
func NewProgressFacade(services *Services) *ProgressFacade {
	return &ProgressFacade{services: services, collection: NewCollectionFacade(services)}
}

// Set returns the completion of one set.
func (p *ProgressFacade) Set(ctx context.Context, userID, setID string, mode progress.Mode) (progress.Result, error) {
	rows, err := p.collection.Rows(ctx, userID)
	if err != nil {
		return progress.Result{}, err
	}
	cards, err := p.services.Catalog.GetCardsBySet(ctx, setID)
	if err != nil {
		return progress.Result{}, err
	}

	res := progress.Compute(setID, rows, cards, mode, p.services.resolver())
	if sets, err := p.services.Catalog.Sets(ctx); err == nil {
		for _, s := range sets {
			if s.ID == setID {
				res.SetName = s.Name
				break
			}
		}
	}
	return res, nil
}

// All returns the completion of every set, newest release first.
func (p *ProgressFacade) All(ctx context.Context, userID string, mode progress.Mode) ([]progress.Result, error) {
	rows, err := p.collection.Rows(ctx, userID)
	if err != nil {
		return nil, err
	}
	sets, err := releaseOrdered(ctx, p.services.Catalog)
	if err != nil {
		return nil, err
	}
	return progress.ComputeAll(sets, rows, mode, p.services.resolver()), nil
}

// Started returns the completion of the sets the user owns cards in.
func (p *ProgressFacade) Started(ctx context.Context, userID string, mode progress.Mode) ([]progress.Result, error) {
	all, err := p.All(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	started := make([]progress.Result, 0, len(all))
	for _, r := range all {
		if r.Owned > 0 {
			started = append(started, r)
		}
	}
	return started, nil
}

// Rarity breaks one set's completion down by rarity.
func (p *ProgressFacade) Rarity(ctx context.Context, userID, setID string, mode progress.Mode) ([]progress.RarityCompletion, error) {
	rows, err := p.collection.Rows(ctx, userID)
	if err != nil {
		return nil, err
	}
	cards, err := p.services.Catalog.GetCardsBySet(ctx, setID)
	if err != nil {
		return nil, err
	}
	return progress.ByRarity(rows, cards, mode, p.services.resolver()), nil
}

// Chart renders the completion of the started sets as HTML. When nothing
// is owned yet every set is drawn.
func (p *ProgressFacade) Chart(ctx context.Context, w io.Writer, userID string, mode progress.Mode) error {
	results, err := p.Started(ctx, userID, mode)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		if results, err = p.All(ctx, userID, mode); err != nil {
			return err
		}
	}

	config := charts.DefaultChartConfig()
	config.Subtitle = fmt.Sprintf("%s mode", mode)
	return charts.RenderCompletion(w, results, config)
}
