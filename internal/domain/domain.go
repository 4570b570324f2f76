package domain

// Status is the lifecycle of the response artifact (the proposal document).
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusSubmitted  Status = "submitted"
)

// Stage is the lifecycle of the business pursuit. Independent of Status:
// a pursuit can be won while its proposal document is still draft.
type Stage string

const (
	StageProspecting Stage = "prospecting"
	StageQualifying  Stage = "qualifying"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Normalize maps unrecognized server-sent values to the display default.
func (s Status) Normalize() Status {
	switch s {
	case StatusDraft, StatusInProgress, StatusReview, StatusSubmitted:
		return s
	}
	return StatusDraft
}

// Active reports whether an item with this status belongs in the active
// proposals list.
func (s Status) Active() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusReview:
		return true
	}
	return false
}

func (s Stage) Normalize() Stage {
	switch s {
	case StageProspecting, StageQualifying, StageProposal, StageNegotiation, StageWon, StageLost:
		return s
	}
	return StageProspecting
}

func (p Priority) Normalize() Priority {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p
	}
	return PriorityMedium
}

// PriorityFromScore buckets a 0-100 numeric win score into a priority band.
func PriorityFromScore(score int) Priority {
	switch {
	case score >= 75:
		return PriorityHigh
	case score >= 50:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// PipelineItem is one tracked pursuit: an opportunity reference plus
// BD-process metadata. Status and Stage are independent axes; Progress has
// no enforced relationship to either.
type PipelineItem struct {
	ID             string   `json:"id"`
	OpportunityID  string   `json:"opportunity_id"`
	Title          string   `json:"title"`
	Agency         string   `json:"agency"`
	Description    string   `json:"description,omitempty"`
	ContractValue  *float64 `json:"contract_value,omitempty"`
	DueDate        *string  `json:"due_date,omitempty" format:"date-time"`
	Status         Status   `json:"status" enum:"draft,in_progress,review,submitted"`
	Stage          Stage    `json:"stage" enum:"prospecting,qualifying,proposal,negotiation,won,lost"`
	Priority       Priority `json:"priority" enum:"low,medium,high,critical"`
	Progress       int      `json:"progress"`
	PwinScore      *int     `json:"pwin_score,omitempty"`
	BriefGenerated bool     `json:"brief_generated"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

// ProposalStatusOrder lists proposal statuses in conventional review order.
// Monotonic by convention only; nothing enforces the progression.
var ProposalStatusOrder = []string{"draft", "in_progress", "pink_team", "red_team", "gold_team", "final", "submitted"}

type Proposal struct {
	ID            string `json:"id"`
	OpportunityID string `json:"opportunity_id"`
	Title         string `json:"title"`
	Status        string `json:"status" enum:"draft,in_progress,pink_team,red_team,gold_team,final,submitted"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

// StatusRank returns the position of the proposal status in the review
// sequence, for display ordering only. Unknown statuses sort first.
func (p Proposal) StatusRank() int {
	for i, s := range ProposalStatusOrder {
		if p.Status == s {
			return i
		}
	}
	return -1
}

// Brief is an AI-generated opportunity analysis, keyed 1:1 by opportunity.
// Once generated it is immutable to the client. The nested sections are
// opaque payloads; no validation or computation is performed on them.
type Brief struct {
	OpportunityID       string         `json:"opportunity_id"`
	Overview            map[string]any `json:"overview,omitempty"`
	BidDecisionMatrix   map[string]any `json:"bid_decision_matrix,omitempty"`
	CompanyMatch        map[string]any `json:"company_match,omitempty"`
	CompetitiveAnalysis map[string]any `json:"competitive_analysis,omitempty"`
	NextSteps           []string       `json:"next_steps,omitempty"`
	Placeholder         bool           `json:"placeholder,omitempty"`
	GeneratedAt         string         `json:"generated_at,omitempty" format:"date-time"`
}

// Opportunity is an externally-owned record; the client only reads it.
type Opportunity struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Agency           string `json:"agency"`
	NAICS            string `json:"naics,omitempty"`
	ResponseDeadline string `json:"response_deadline,omitempty" format:"date-time"`
	PostedDate       string `json:"posted_date,omitempty" format:"date-time"`
	URL              string `json:"url,omitempty"`
	Source           string `json:"source,omitempty"`
}

type PipelineStats struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByStage            map[string]int `json:"by_stage"`
	TotalContractValue float64        `json:"total_contract_value"`
	AveragePwin        float64        `json:"average_pwin"`
}

type DashboardStats struct {
	ActiveProposals   int     `json:"active_proposals"`
	OpenOpportunities int     `json:"open_opportunities"`
	PipelineValue     float64 `json:"pipeline_value"`
	WinRate           float64 `json:"win_rate"`
}

// Event is one activity log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
