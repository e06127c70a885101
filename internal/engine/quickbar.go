package engine

import (
	"context"

	apperrors "giftscope/internal/errors"
	"giftscope/internal/filter"
)

// QuickBar is the single-select filter bar. Every change commits immediately
// and refreshes the catalog from the response.
type QuickBar struct {
	e *Engine
}

// SetTrait selects value as the only value of trait; filter.All removes the trait.
func (b *QuickBar) SetTrait(ctx context.Context, trait, value string) error {
	snap := b.e.store.Snapshot()
	if snap.Collection == "" {
		return nil
	}
	return b.apply(ctx, filter.SetSingle(snap.Filters, trait, value))
}

// ApplyID adds an ID filter to the committed selection. A blank id is ignored.
func (b *QuickBar) ApplyID(ctx context.Context, raw string) error {
	snap := b.e.store.Snapshot()
	next, err := filter.SetID(snap.Filters, raw)
	if err != nil {
		return nil
	}
	if snap.Collection == "" {
		return nil
	}
	return b.apply(ctx, next)
}

func (b *QuickBar) Clear(ctx context.Context) error {
	if b.e.store.Snapshot().Collection == "" {
		return nil
	}
	return b.apply(ctx, filter.Selection{})
}

// Options lists catalog values for trait, most common first.
func (b *QuickBar) Options(trait string) []string {
	return b.e.store.Snapshot().Catalog.Options(trait)
}

// Current is the committed value shown for trait, or filter.All.
func (b *QuickBar) Current(trait string) string {
	return b.e.store.Snapshot().Filters.First(trait)
}

func (b *QuickBar) apply(ctx context.Context, sel filter.Selection) error {
	release, err := b.e.acquire()
	if err != nil {
		return err
	}
	defer release()
	if _, err := b.e.commit(ctx, sel, true); err != nil {
		b.e.notify.Error(apperrors.Message(err))
		return err
	}
	return nil
}
