package stub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"govsure/internal/api"
	"govsure/internal/db"
	"govsure/internal/domain"
	"govsure/internal/migrate"
	"govsure/internal/repo"
)

type testServer struct {
	URL    string
	Client *api.Client
	close  func()
}

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Seed(context.Background(), repo.Repo{DB: conn}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, err := New(Config{DB: conn, Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	url := "http://" + ln.Addr().String()
	ts := &testServer{
		URL:    url,
		Client: api.New(url, ""),
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func TestPipelineItemLifecycle(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	ctx := context.Background()

	value := 250000.0
	pwin := 80
	created, err := srv.Client.CreatePipelineItem(ctx, api.CreatePipelineItemInput{
		OpportunityID: "opp-seed-1",
		Title:         "VA IT Support",
		Agency:        "Department of Veterans Affairs",
		ContractValue: &value,
		PwinScore:     &pwin,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("created item has no id")
	}
	if created.Status != domain.StatusDraft || created.Stage != domain.StageProspecting {
		t.Fatalf("new item defaults wrong: %+v", created)
	}
	if created.Priority != domain.PriorityHigh {
		t.Fatalf("pwin 80 should bucket to high priority, got %s", created.Priority)
	}

	items, err := srv.Client.ListPipelineItems(ctx, 1, 20, api.PipelineFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("list: %+v", items)
	}

	status := domain.StatusSubmitted
	stage := domain.StageWon
	updated, err := srv.Client.UpdatePipelineItem(ctx, created.ID, api.UpdatePipelineItemInput{
		Status: &status,
		Stage:  &stage,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusSubmitted || updated.Stage != domain.StageWon {
		t.Fatalf("update not applied: %+v", updated)
	}

	active, err := srv.Client.ActivePipelineItems(ctx, 5)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("submitted item must not be active: %+v", active)
	}

	stats, err := srv.Client.PipelineStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 || stats.ByStage["won"] != 1 {
		t.Fatalf("stats: %+v", stats)
	}

	if err := srv.Client.SharePipelineItem(ctx, created.ID, "teammate@example.com"); err != nil {
		t.Fatalf("share: %v", err)
	}

	if err := srv.Client.DeletePipelineItem(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := srv.Client.DeletePipelineItem(ctx, created.ID); err == nil {
		t.Fatalf("second delete should 404")
	}
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	_, err := srv.Client.CreatePipelineItem(context.Background(), api.CreatePipelineItemInput{Title: "no opp"})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", apiErr.StatusCode)
	}

	bad := -5.0
	_, err = srv.Client.CreatePipelineItem(context.Background(), api.CreatePipelineItemInput{
		OpportunityID: "opp-seed-1",
		Title:         "Bad value",
		Agency:        "GSA",
		ContractValue: &bad,
	})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("negative contract value should 422, got %v", err)
	}
}

func TestNotFoundUsesDetailEnvelope(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	res, err := http.Get(srv.URL + "/api/v1/proposals/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	var envelope struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal %s: %v", body, err)
	}
	if envelope.Detail == "" {
		t.Fatalf("missing detail field: %s", body)
	}
}

func TestProposalsAndOpportunities(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	ctx := context.Background()

	mine, err := srv.Client.MyProposals(ctx, 10)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("seeded proposals: %+v", mine)
	}

	forOpp, err := srv.Client.ProposalsForOpportunity(ctx, "opp-seed-1")
	if err != nil {
		t.Fatalf("for opportunity: %v", err)
	}
	if len(forOpp) != 2 {
		t.Fatalf("proposals for opp-seed-1: %+v", forOpp)
	}

	top, err := srv.Client.TopOpportunities(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top: %+v", top)
	}
	// ordered by response deadline ascending
	if top[0].ID != "opp-seed-1" {
		t.Fatalf("nearest deadline should rank first: %+v", top)
	}

	found, err := srv.Client.SearchOpportunities(ctx, "Logistics")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != "opp-seed-2" {
		t.Fatalf("search: %+v", found)
	}

	sam, err := srv.Client.SAMSearch(ctx, "")
	if err != nil {
		t.Fatalf("sam search: %v", err)
	}
	for _, o := range sam {
		if o.Source != "sam.gov" {
			t.Fatalf("sam search leaked %+v", o)
		}
	}
	if len(sam) != 2 {
		t.Fatalf("sam search: %+v", sam)
	}
}

func TestBriefGenerateAndFetch(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	ctx := context.Background()

	_, err := srv.Client.GetBrief(ctx, "opp-seed-1")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("brief should not exist yet, got %v", err)
	}

	generated, err := srv.Client.GenerateBrief(ctx, "opp-seed-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if generated.Placeholder {
		t.Fatalf("generated brief is a placeholder: %+v", generated)
	}
	if generated.Overview["title"] != "Enterprise IT Support Services" {
		t.Fatalf("overview: %+v", generated.Overview)
	}

	fetched, err := srv.Client.GetBrief(ctx, "opp-seed-1")
	if err != nil {
		t.Fatalf("get after generate: %v", err)
	}
	if fetched.GeneratedAt != generated.GeneratedAt {
		t.Fatalf("regenerate must return the stored artifact: %q vs %q", fetched.GeneratedAt, generated.GeneratedAt)
	}

	again, err := srv.Client.GenerateBrief(ctx, "opp-seed-1")
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if again.GeneratedAt != generated.GeneratedAt {
		t.Fatalf("briefs are immutable once generated")
	}
}

func TestDashboardStats(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	ctx := context.Background()

	value := 1000000.0
	if _, err := srv.Client.CreatePipelineItem(ctx, api.CreatePipelineItemInput{
		OpportunityID: "opp-seed-1",
		Title:         "Pursuit",
		Agency:        "GSA",
		ContractValue: &value,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	stats, err := srv.Client.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.ActiveProposals != 1 {
		t.Fatalf("active proposals %d", stats.ActiveProposals)
	}
	if stats.OpenOpportunities != 3 {
		t.Fatalf("open opportunities %d", stats.OpenOpportunities)
	}
	if stats.PipelineValue != value {
		t.Fatalf("pipeline value %f", stats.PipelineValue)
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: "test-secret"})
	ctx := context.Background()

	_, err := srv.Client.PipelineStats(ctx)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %v", err)
	}

	res, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health must stay open, got %d", res.StatusCode)
	}

	token, err := IssueDevToken("test-secret", "tester", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	srv.Client.Token = token
	if _, err := srv.Client.PipelineStats(ctx); err != nil {
		t.Fatalf("stats with token: %v", err)
	}

	srv.Client.Token = "not-a-jwt"
	_, err = srv.Client.PipelineStats(ctx)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token should 401, got %v", err)
	}
}

func TestDevLoginIssuesUsableToken(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: "test-secret"})

	res, err := http.Post(srv.URL+"/auth/dev/login", "application/json",
		jsonBody(t, map[string]string{"subject": "alice"}))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		t.Fatalf("login status %d: %s", res.StatusCode, body)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TokenType != "bearer" || out.AccessToken == "" {
		t.Fatalf("login response: %+v", out)
	}

	srv.Client.Token = out.AccessToken
	if _, err := srv.Client.PipelineStats(context.Background()); err != nil {
		t.Fatalf("stats with issued token: %v", err)
	}
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}
