// Package stub serves the GovSure REST surface from the local sqlite
// database, for offline development and integration tests. It mirrors the
// production backend's shapes, FastAPI-style detail errors included; it is
// a fixture, not the product backend.
package stub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"govsure/internal/domain"
	"govsure/internal/events"
	"govsure/internal/repo"
)

// Config for the stub handler.
type Config struct {
	DB   *sql.DB
	Auth AuthConfig
	Now  func() time.Time
}

type server struct {
	db     *sql.DB
	repo   repo.Repo
	events events.Writer
	now    func() time.Time
}

// apiError is the FastAPI-style error envelope the real backend emits.
type apiError struct {
	status int
	Detail string `json:"detail"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Detail }

func newDetailError(status int, detail string) huma.StatusError {
	return &apiError{status: status, Detail: detail}
}

// New returns an HTTP handler exposing the stub API.
func New(cfg Config) (http.Handler, error) {
	if cfg.DB == nil {
		return nil, errors.New("db required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &server{
		db:     cfg.DB,
		repo:   repo.Repo{DB: cfg.DB},
		events: events.Writer{DB: cfg.DB, Now: now},
		now:    now,
	}

	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newDetailError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(cfg.Auth))
	hcfg := huma.DefaultConfig("GovSure Stub API", "0.1.0")
	hcfg.DocsPath = "/docs"
	api := humachi.New(router, hcfg)

	registerHealth(api)
	registerDevAuth(api, cfg.Auth)
	s.registerPipeline(api)
	s.registerProposals(api)
	s.registerOpportunities(api)
	s.registerBriefs(api)
	s.registerDashboard(api)

	return router, nil
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newDetailError(http.StatusNotFound, "Not found")
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}
	return newDetailError(http.StatusInternalServerError, err.Error())
}

func actorFromContext(ctx context.Context) string {
	if p, ok := principalFromContext(ctx); ok {
		return p.Subject
	}
	return "dev-user"
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDevAuth(api huma.API, auth AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Issue a dev bearer token",
	}, func(ctx context.Context, input *struct {
		Body struct {
			Subject string `json:"subject"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
		} `json:"body"`
	}, error) {
		subject := input.Body.Subject
		if subject == "" {
			subject = "dev-user"
		}
		token, err := IssueDevToken(auth.JWTSecret, subject, 24*time.Hour)
		if err != nil {
			return nil, newDetailError(http.StatusBadRequest, err.Error())
		}
		out := &struct {
			Body struct {
				AccessToken string `json:"access_token"`
				TokenType   string `json:"token_type"`
			} `json:"body"`
		}{}
		out.Body.AccessToken = token
		out.Body.TokenType = "bearer"
		return out, nil
	})
}

type createPipelineItemRequest struct {
	OpportunityID string   `json:"opportunity_id"`
	Title         string   `json:"title"`
	Agency        string   `json:"agency"`
	Description   string   `json:"description,omitempty"`
	ContractValue *float64 `json:"contract_value,omitempty"`
	DueDate       *string  `json:"due_date,omitempty"`
	PwinScore     *int     `json:"pwin_score,omitempty"`
}

type updatePipelineItemRequest struct {
	Title         *string  `json:"title,omitempty"`
	Agency        *string  `json:"agency,omitempty"`
	Description   *string  `json:"description,omitempty"`
	ContractValue *float64 `json:"contract_value,omitempty"`
	DueDate       *string  `json:"due_date,omitempty"`
	Status        *string  `json:"status,omitempty" enum:"draft,in_progress,review,submitted"`
	Stage         *string  `json:"stage,omitempty" enum:"prospecting,qualifying,proposal,negotiation,won,lost"`
	Priority      *string  `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Progress      *int     `json:"progress,omitempty" minimum:"0" maximum:"100"`
	PwinScore     *int     `json:"pwin_score,omitempty" minimum:"0" maximum:"100"`
}

func (s *server) registerPipeline(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-pipeline-item",
		Method:        http.MethodPost,
		Path:          "/api/v1/pipeline/items",
		Summary:       "Add a pursuit to the pipeline",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body createPipelineItemRequest `json:"body"`
	}) (*struct {
		Body domain.PipelineItem `json:"body"`
	}, error) {
		b := input.Body
		if b.OpportunityID == "" || b.Title == "" || b.Agency == "" {
			return nil, newDetailError(http.StatusUnprocessableEntity, "opportunity_id, title and agency are required")
		}
		if b.ContractValue != nil && *b.ContractValue < 0 {
			return nil, newDetailError(http.StatusUnprocessableEntity, "contract_value must not be negative")
		}
		nowStr := s.now().UTC().Format(time.RFC3339)
		item := domain.PipelineItem{
			ID:            uuid.NewString(),
			OpportunityID: b.OpportunityID,
			Title:         b.Title,
			Agency:        b.Agency,
			Description:   b.Description,
			ContractValue: b.ContractValue,
			DueDate:       b.DueDate,
			Status:        domain.StatusDraft,
			Stage:         domain.StageProspecting,
			Priority:      domain.PriorityMedium,
			PwinScore:     b.PwinScore,
			CreatedAt:     nowStr,
			UpdatedAt:     nowStr,
		}
		if b.PwinScore != nil {
			item.Priority = domain.PriorityFromScore(*b.PwinScore)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := s.repo.InsertPipelineItem(ctx, tx, item); err != nil {
			return nil, handleError(err)
		}
		if err := s.events.Append(ctx, tx, "pipeline.item.created", "pipeline_item", item.ID, actorFromContext(ctx), events.EventPayload{"title": item.Title}); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PipelineItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pipeline-items",
		Method:      http.MethodGet,
		Path:        "/api/v1/pipeline/items",
		Summary:     "List pipeline items",
	}, func(ctx context.Context, input *struct {
		Page     int    `query:"page" default:"1"`
		Limit    int    `query:"limit" default:"20"`
		Status   string `query:"status"`
		Stage    string `query:"stage"`
		Priority string `query:"priority"`
	}) (*struct {
		Body []domain.PipelineItem `json:"body"`
	}, error) {
		items, err := s.repo.ListPipelineItems(ctx, repo.PipelineFilters{
			Status:   input.Status,
			Stage:    input.Stage,
			Priority: input.Priority,
			Page:     input.Page,
			Limit:    input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.PipelineItem{}
		}
		return &struct {
			Body []domain.PipelineItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-active-pipeline-items",
		Method:      http.MethodGet,
		Path:        "/api/v1/pipeline/items/active",
		Summary:     "List active proposals",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"5"`
	}) (*struct {
		Body []domain.PipelineItem `json:"body"`
	}, error) {
		items, err := s.repo.ListActivePipelineItems(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.PipelineItem{}
		}
		return &struct {
			Body []domain.PipelineItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-pipeline-item",
		Method:      http.MethodPut,
		Path:        "/api/v1/pipeline/items/{id}",
		Summary:     "Update a pipeline item",
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body updatePipelineItemRequest `json:"body"`
	}) (*struct {
		Body domain.PipelineItem `json:"body"`
	}, error) {
		item, err := s.repo.GetPipelineItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		applyPatch(&item, input.Body)
		item.UpdatedAt = s.now().UTC().Format(time.RFC3339)
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := s.repo.UpdatePipelineItem(ctx, tx, item); err != nil {
			return nil, handleError(err)
		}
		if err := s.events.Append(ctx, tx, "pipeline.item.updated", "pipeline_item", item.ID, actorFromContext(ctx), events.EventPayload{"status": item.Status, "stage": item.Stage}); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PipelineItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-pipeline-item",
		Method:        http.MethodDelete,
		Path:          "/api/v1/pipeline/items/{id}",
		Summary:       "Delete a pipeline item",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := s.repo.DeletePipelineItem(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "share-pipeline-item",
		Method:      http.MethodPost,
		Path:        "/api/v1/pipeline/items/{id}/share",
		Summary:     "Share a pipeline item by email",
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Email string `json:"email"`
		} `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if !strings.Contains(input.Body.Email, "@") {
			return nil, newDetailError(http.StatusUnprocessableEntity, "a valid email is required")
		}
		item, err := s.repo.GetPipelineItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := s.events.Append(ctx, tx, "pipeline.item.shared", "pipeline_item", item.ID, actorFromContext(ctx), events.EventPayload{"email": input.Body.Email}); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "shared"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pipeline-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/pipeline/stats",
		Summary:     "Pipeline aggregate counters",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.PipelineStats `json:"body"`
	}, error) {
		stats, err := s.repo.PipelineStats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PipelineStats `json:"body"`
		}{Body: stats}, nil
	})
}

func applyPatch(item *domain.PipelineItem, patch updatePipelineItemRequest) {
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Agency != nil {
		item.Agency = *patch.Agency
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.ContractValue != nil {
		item.ContractValue = patch.ContractValue
	}
	if patch.DueDate != nil {
		item.DueDate = patch.DueDate
	}
	if patch.Status != nil {
		item.Status = domain.Status(*patch.Status).Normalize()
	}
	if patch.Stage != nil {
		item.Stage = domain.Stage(*patch.Stage).Normalize()
	}
	if patch.Priority != nil {
		item.Priority = domain.Priority(*patch.Priority).Normalize()
	}
	if patch.Progress != nil {
		item.Progress = *patch.Progress
	}
	if patch.PwinScore != nil {
		item.PwinScore = patch.PwinScore
	}
}

func (s *server) registerProposals(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "my-proposals",
		Method:      http.MethodGet,
		Path:        "/api/v1/proposals/mine",
		Summary:     "List my proposals",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"10"`
	}) (*struct {
		Body []domain.Proposal `json:"body"`
	}, error) {
		items, err := s.repo.ListProposals(ctx, repo.ProposalFilters{Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Proposal{}
		}
		return &struct {
			Body []domain.Proposal `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-proposals",
		Method:      http.MethodGet,
		Path:        "/api/v1/proposals",
		Summary:     "List proposals",
	}, func(ctx context.Context, input *struct {
		Skip          int    `query:"skip"`
		Limit         int    `query:"limit" default:"20"`
		Status        string `query:"status"`
		OpportunityID string `query:"opportunity_id"`
	}) (*struct {
		Body []domain.Proposal `json:"body"`
	}, error) {
		items, err := s.repo.ListProposals(ctx, repo.ProposalFilters{
			OpportunityID: input.OpportunityID,
			Status:        input.Status,
			Skip:          input.Skip,
			Limit:         input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Proposal{}
		}
		return &struct {
			Body []domain.Proposal `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-proposal",
		Method:      http.MethodGet,
		Path:        "/api/v1/proposals/{id}",
		Summary:     "Get a proposal",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Proposal `json:"body"`
	}, error) {
		p, err := s.repo.GetProposal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Proposal `json:"body"`
		}{Body: p}, nil
	})
}

func (s *server) registerOpportunities(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "top-opportunities",
		Method:      http.MethodGet,
		Path:        "/api/v1/opportunities/top",
		Summary:     "Top opportunities by deadline",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"10"`
	}) (*struct {
		Body []domain.Opportunity `json:"body"`
	}, error) {
		items, err := s.repo.ListOpportunities(ctx, "", input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Opportunity{}
		}
		return &struct {
			Body []domain.Opportunity `json:"body"`
		}{Body: items}, nil
	})

	search := func(ctx context.Context, query string, source string) ([]domain.Opportunity, error) {
		items, err := s.repo.ListOpportunities(ctx, query, 50)
		if err != nil {
			return nil, err
		}
		if source == "" {
			return items, nil
		}
		var filtered []domain.Opportunity
		for _, o := range items {
			if o.Source == source {
				filtered = append(filtered, o)
			}
		}
		return filtered, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "search-opportunities",
		Method:      http.MethodPost,
		Path:        "/api/v1/opportunities/search",
		Summary:     "Search opportunities",
	}, func(ctx context.Context, input *struct {
		Body struct {
			Query string `json:"query"`
		} `json:"body"`
	}) (*struct {
		Body []domain.Opportunity `json:"body"`
	}, error) {
		items, err := search(ctx, input.Body.Query, "")
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Opportunity{}
		}
		return &struct {
			Body []domain.Opportunity `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sam-search",
		Method:      http.MethodPost,
		Path:        "/api/v1/opportunities/sam-search",
		Summary:     "Search SAM.gov sourced opportunities",
	}, func(ctx context.Context, input *struct {
		Body struct {
			Query string `json:"query"`
		} `json:"body"`
	}) (*struct {
		Body []domain.Opportunity `json:"body"`
	}, error) {
		items, err := search(ctx, input.Body.Query, "sam.gov")
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Opportunity{}
		}
		return &struct {
			Body []domain.Opportunity `json:"body"`
		}{Body: items}, nil
	})
}

func (s *server) registerBriefs(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-brief",
		Method:      http.MethodGet,
		Path:        "/api/v1/briefs/{opportunity_id}",
		Summary:     "Get a generated brief",
	}, func(ctx context.Context, input *struct {
		OpportunityID string `path:"opportunity_id"`
	}) (*struct {
		Body domain.Brief `json:"body"`
	}, error) {
		b, err := s.repo.GetBrief(ctx, input.OpportunityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Brief `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "generate-brief",
		Method:        http.MethodPost,
		Path:          "/api/v1/briefs/generate",
		Summary:       "Generate a brief for an opportunity",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body struct {
			OpportunityID string `json:"opportunity_id"`
		} `json:"body"`
	}) (*struct {
		Body domain.Brief `json:"body"`
	}, error) {
		oppID := input.Body.OpportunityID
		if oppID == "" {
			return nil, newDetailError(http.StatusUnprocessableEntity, "opportunity_id is required")
		}
		// Briefs are immutable once generated; re-generate returns the
		// stored artifact.
		if b, err := s.repo.GetBrief(ctx, oppID); err == nil && !b.Placeholder {
			return &struct {
				Body domain.Brief `json:"body"`
			}{Body: b}, nil
		}
		b := s.synthesizeBrief(ctx, oppID)
		if err := s.repo.PutBrief(ctx, b); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Brief `json:"body"`
		}{Body: b}, nil
	})
}

// synthesizeBrief builds a deterministic fixture brief from whatever the
// stub knows about the opportunity.
func (s *server) synthesizeBrief(ctx context.Context, opportunityID string) domain.Brief {
	title := opportunityID
	agency := "unknown"
	if opps, err := s.repo.ListOpportunities(ctx, "", 0); err == nil {
		for _, o := range opps {
			if o.ID == opportunityID {
				title = o.Title
				agency = o.Agency
				break
			}
		}
	}
	return domain.Brief{
		OpportunityID: opportunityID,
		Overview: map[string]any{
			"title":  title,
			"agency": agency,
		},
		BidDecisionMatrix: map[string]any{
			"recommendation": "pursue",
			"confidence":     "fixture",
		},
		CompanyMatch: map[string]any{
			"score": 50,
		},
		CompetitiveAnalysis: map[string]any{
			"incumbent": "unknown",
		},
		NextSteps:   []string{"Review requirements", "Draft capability statement"},
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}
}

func (s *server) registerDashboard(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/dashboard/stats",
		Summary:     "Dashboard aggregate counters",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.DashboardStats `json:"body"`
	}, error) {
		pipeline, err := s.repo.PipelineStats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		opps, err := s.repo.ListOpportunities(ctx, "", 0)
		if err != nil {
			return nil, handleError(err)
		}
		stats := domain.DashboardStats{
			ActiveProposals:   pipeline.ByStatus["draft"] + pipeline.ByStatus["in_progress"] + pipeline.ByStatus["review"],
			OpenOpportunities: len(opps),
			PipelineValue:     pipeline.TotalContractValue,
		}
		won := pipeline.ByStage["won"]
		closed := won + pipeline.ByStage["lost"]
		if closed > 0 {
			stats.WinRate = float64(won) / float64(closed)
		}
		return &struct {
			Body domain.DashboardStats `json:"body"`
		}{Body: stats}, nil
	})
}

// Seed loads a handful of opportunities and proposals so the stub has
// something to serve on first run.
func Seed(ctx context.Context, r repo.Repo, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	deadline := func(days int) string {
		return now().UTC().AddDate(0, 0, days).Format(time.RFC3339)
	}
	opps := []domain.Opportunity{
		{ID: "opp-seed-1", Title: "Enterprise IT Support Services", Agency: "Department of Veterans Affairs", NAICS: "541512", ResponseDeadline: deadline(21), Source: "sam.gov"},
		{ID: "opp-seed-2", Title: "Logistics Modernization Study", Agency: "Defense Logistics Agency", NAICS: "541614", ResponseDeadline: deadline(45), Source: "sam.gov"},
		{ID: "opp-seed-3", Title: "Grants Portal Maintenance", Agency: "Department of Education", NAICS: "541511", ResponseDeadline: deadline(60)},
	}
	for _, o := range opps {
		if err := r.InsertOpportunity(ctx, o); err != nil {
			return fmt.Errorf("seed opportunity %s: %w", o.ID, err)
		}
	}
	nowStr := now().UTC().Format(time.RFC3339)
	proposals := []domain.Proposal{
		{ID: "prop-seed-1", OpportunityID: "opp-seed-1", Title: "VA IT Support Response", Status: "pink_team", CreatedAt: nowStr, UpdatedAt: nowStr},
		{ID: "prop-seed-2", OpportunityID: "opp-seed-1", Title: "VA IT Support Alternate Volume", Status: "draft", CreatedAt: nowStr, UpdatedAt: nowStr},
	}
	for _, p := range proposals {
		if err := r.InsertProposal(ctx, p); err != nil {
			return fmt.Errorf("seed proposal %s: %w", p.ID, err)
		}
	}
	return nil
}
