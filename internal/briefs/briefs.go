// Package briefs wraps brief and proposal lookups behind a read-through
// contract: local cache, then the authoritative fetch, then explicit
// regeneration, and finally a client-synthesized placeholder. A failure
// never escapes this boundary as an error.
package briefs

import (
	"context"
	"time"

	"govsure/internal/domain"
)

// BriefAPI is the slice of the API client the service needs.
type BriefAPI interface {
	GetBrief(ctx context.Context, opportunityID string) (domain.Brief, error)
	GenerateBrief(ctx context.Context, opportunityID string) (domain.Brief, error)
	ProposalsForOpportunity(ctx context.Context, opportunityID string) ([]domain.Proposal, error)
}

// Cache persists generated briefs between runs. Optional; a nil-DB repo is
// skipped.
type Cache interface {
	GetBrief(ctx context.Context, opportunityID string) (domain.Brief, error)
	PutBrief(ctx context.Context, b domain.Brief) error
}

type Service struct {
	API   BriefAPI
	Cache Cache
	Now   func() time.Time
}

func NewService(client BriefAPI, cache Cache) *Service {
	return &Service{API: client, Cache: cache, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get resolves the brief for an opportunity. The degrade chain is:
// cached value, authoritative GET, explicit POST generate, placeholder.
// Placeholders are cached so the page renders, but a later Get retries the
// network path rather than trusting them.
func (s *Service) Get(ctx context.Context, opportunityID string) domain.Brief {
	if s.Cache != nil {
		// Cache trouble is not a reason to fail the lookup; any miss or
		// read error falls through to the network path.
		if b, err := s.Cache.GetBrief(ctx, opportunityID); err == nil && !b.Placeholder {
			return b
		}
	}
	b, err := s.API.GetBrief(ctx, opportunityID)
	if err != nil {
		// Any failure here, 404 included, means "not generated yet";
		// ask the server to generate.
		b, err = s.API.GenerateBrief(ctx, opportunityID)
	}
	if err != nil {
		return s.store(ctx, placeholder(opportunityID, s.now()))
	}
	b.OpportunityID = opportunityID
	if b.GeneratedAt == "" {
		b.GeneratedAt = s.now().UTC().Format(time.RFC3339)
	}
	return s.store(ctx, b)
}

func (s *Service) store(ctx context.Context, b domain.Brief) domain.Brief {
	if s.Cache != nil {
		_ = s.Cache.PutBrief(ctx, b)
	}
	return b
}

// PrimaryProposal returns the first proposal the server lists for the
// opportunity, or nil when there is none. Server order is preserved; there
// is no tie-break when several exist.
func (s *Service) PrimaryProposal(ctx context.Context, opportunityID string) (*domain.Proposal, error) {
	proposals, err := s.API.ProposalsForOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	if len(proposals) == 0 {
		return nil, nil
	}
	p := proposals[0]
	return &p, nil
}

func placeholder(opportunityID string, now time.Time) domain.Brief {
	return domain.Brief{
		OpportunityID: opportunityID,
		Overview: map[string]any{
			"summary": "Brief is being prepared. Check back shortly.",
		},
		NextSteps:   []string{"Review the opportunity details", "Confirm bid decision criteria"},
		Placeholder: true,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}
