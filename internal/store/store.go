// Package store holds the in-memory pipeline state and mirrors server
// mutations, the way the product dashboard keeps its slice of pursuits.
package store

import (
	"context"
	"sync"

	"govsure/internal/api"
	"govsure/internal/domain"
)

// PipelineAPI is the slice of the API client the store needs.
type PipelineAPI interface {
	CreatePipelineItem(ctx context.Context, input api.CreatePipelineItemInput) (domain.PipelineItem, error)
	ListPipelineItems(ctx context.Context, page, limit int, f api.PipelineFilters) ([]domain.PipelineItem, error)
	ActivePipelineItems(ctx context.Context, limit int) ([]domain.PipelineItem, error)
	UpdatePipelineItem(ctx context.Context, id string, input api.UpdatePipelineItemInput) (domain.PipelineItem, error)
	DeletePipelineItem(ctx context.Context, id string) error
	SharePipelineItem(ctx context.Context, id, email string) error
	PipelineStats(ctx context.Context) (domain.PipelineStats, error)
}

// Store is the authoritative in-memory list of pipeline items. It is an
// explicit, injected object so tests can build isolated instances.
//
// Items and ActiveProposals are deliberately NOT kept in referential sync:
// Update patches both lists, but Fetch does not re-derive ActiveProposals,
// so the two can diverge until the next FetchActive. That staleness window
// is part of the contract.
type Store struct {
	api PipelineAPI

	mu              sync.Mutex
	items           []domain.PipelineItem
	activeProposals []domain.PipelineItem
	stats           *domain.PipelineStats
	loading         bool
	err             string
}

func New(client PipelineAPI) *Store {
	return &Store{api: client}
}

// Snapshot is a copy of the store state at one instant.
type Snapshot struct {
	Items           []domain.PipelineItem
	ActiveProposals []domain.PipelineItem
	Stats           *domain.PipelineStats
	Loading         bool
	Err             string
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Items:           append([]domain.PipelineItem(nil), s.items...),
		ActiveProposals: append([]domain.PipelineItem(nil), s.activeProposals...),
		Loading:         s.loading,
		Err:             s.err,
	}
	if s.stats != nil {
		st := *s.stats
		snap.Stats = &st
	}
	return snap
}

// begin marks the operation pending and clears the previous error.
func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

// finish stores the failure message verbatim; there is no error taxonomy
// beyond the string.
func (s *Store) finish(err error) {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
}

// Add creates the item server-side, then prepends it to Items and, when its
// status marks an in-flight response, to ActiveProposals.
func (s *Store) Add(ctx context.Context, input api.CreatePipelineItemInput) (domain.PipelineItem, error) {
	s.begin()
	item, err := s.api.CreatePipelineItem(ctx, input)
	if err != nil {
		s.finish(err)
		return domain.PipelineItem{}, err
	}
	s.mu.Lock()
	s.items = append([]domain.PipelineItem{item}, s.items...)
	if item.Status.Active() {
		s.activeProposals = append([]domain.PipelineItem{item}, s.activeProposals...)
	}
	s.mu.Unlock()
	s.finish(nil)
	return item, nil
}

// Fetch replaces Items wholesale. No merge, no dedupe, and no re-derivation
// of ActiveProposals.
func (s *Store) Fetch(ctx context.Context, page, limit int, f api.PipelineFilters) error {
	s.begin()
	items, err := s.api.ListPipelineItems(ctx, page, limit, f)
	if err != nil {
		s.finish(err)
		return err
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.finish(nil)
	return nil
}

// FetchActive replaces ActiveProposals wholesale from the server's
// pre-filtered view.
func (s *Store) FetchActive(ctx context.Context, limit int) error {
	s.begin()
	items, err := s.api.ActivePipelineItems(ctx, limit)
	if err != nil {
		s.finish(err)
		return err
	}
	s.mu.Lock()
	s.activeProposals = items
	s.mu.Unlock()
	s.finish(nil)
	return nil
}

// Update sends a partial update and patches the returned item into both
// lists by id, in place, without reordering. An item absent from
// ActiveProposals leaves that list untouched.
func (s *Store) Update(ctx context.Context, id string, input api.UpdatePipelineItemInput) (domain.PipelineItem, error) {
	s.begin()
	item, err := s.api.UpdatePipelineItem(ctx, id, input)
	if err != nil {
		s.finish(err)
		return domain.PipelineItem{}, err
	}
	s.mu.Lock()
	replaceByID(s.items, item)
	replaceByID(s.activeProposals, item)
	s.mu.Unlock()
	s.finish(nil)
	return item, nil
}

// Delete removes the item server-side and drops it from both lists.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.begin()
	if err := s.api.DeletePipelineItem(ctx, id); err != nil {
		s.finish(err)
		return err
	}
	s.mu.Lock()
	s.items = removeByID(s.items, id)
	s.activeProposals = removeByID(s.activeProposals, id)
	s.mu.Unlock()
	s.finish(nil)
	return nil
}

// Share notifies a third party. Fire-and-forget for local state.
func (s *Store) Share(ctx context.Context, id, email string) error {
	s.begin()
	err := s.api.SharePipelineItem(ctx, id, email)
	s.finish(err)
	return err
}

// FetchStats replaces the aggregate counters.
func (s *Store) FetchStats(ctx context.Context) error {
	s.begin()
	stats, err := s.api.PipelineStats(ctx)
	if err != nil {
		s.finish(err)
		return err
	}
	s.mu.Lock()
	s.stats = &stats
	s.mu.Unlock()
	s.finish(nil)
	return nil
}

func replaceByID(items []domain.PipelineItem, item domain.PipelineItem) {
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return
		}
	}
}

func removeByID(items []domain.PipelineItem, id string) []domain.PipelineItem {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
