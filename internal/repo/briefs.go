package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"govsure/internal/domain"
)

// Briefs are immutable once generated, so the cache row is written once per
// opportunity and only replaced when a placeholder is upgraded to the real
// artifact.

func (r Repo) GetBrief(ctx context.Context, opportunityID string) (domain.Brief, error) {
	var payload string
	var placeholder int
	var generatedAt string
	err := r.DB.QueryRowContext(ctx, `SELECT payload_json, placeholder, generated_at FROM briefs WHERE opportunity_id=?`, opportunityID).
		Scan(&payload, &placeholder, &generatedAt)
	if err == sql.ErrNoRows {
		return domain.Brief{}, ErrNotFound
	}
	if err != nil {
		return domain.Brief{}, err
	}
	var b domain.Brief
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return domain.Brief{}, err
	}
	b.OpportunityID = opportunityID
	b.Placeholder = placeholder != 0
	b.GeneratedAt = generatedAt
	return b, nil
}

func (r Repo) PutBrief(ctx context.Context, b domain.Brief) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	generatedAt := b.GeneratedAt
	if generatedAt == "" {
		generatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO briefs(opportunity_id,payload_json,placeholder,generated_at) VALUES (?,?,?,?)
ON CONFLICT(opportunity_id) DO UPDATE SET payload_json=excluded.payload_json, placeholder=excluded.placeholder, generated_at=excluded.generated_at`,
		b.OpportunityID, string(payload), boolInt(b.Placeholder), generatedAt)
	return err
}

func (r Repo) DeleteBrief(ctx context.Context, opportunityID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM briefs WHERE opportunity_id=?`, opportunityID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
