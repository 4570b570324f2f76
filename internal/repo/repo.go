package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"govsure/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const pipelineColumns = `id,opportunity_id,title,agency,description,contract_value,due_date,status,stage,priority,progress,pwin_score,brief_generated,created_at,updated_at`

func scanPipelineItem(scan func(dest ...any) error) (domain.PipelineItem, error) {
	var it domain.PipelineItem
	var description, dueDate sql.NullString
	var contractValue sql.NullFloat64
	var pwin sql.NullInt64
	var briefGenerated int
	err := scan(&it.ID, &it.OpportunityID, &it.Title, &it.Agency, &description, &contractValue, &dueDate,
		&it.Status, &it.Stage, &it.Priority, &it.Progress, &pwin, &briefGenerated, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	if err != nil {
		return it, err
	}
	if description.Valid {
		it.Description = description.String
	}
	if contractValue.Valid {
		v := contractValue.Float64
		it.ContractValue = &v
	}
	if dueDate.Valid {
		it.DueDate = &dueDate.String
	}
	if pwin.Valid {
		p := int(pwin.Int64)
		it.PwinScore = &p
	}
	it.BriefGenerated = briefGenerated != 0
	return it, nil
}

func (r Repo) InsertPipelineItem(ctx context.Context, tx *sql.Tx, it domain.PipelineItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO pipeline_items(`+pipelineColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		it.ID, it.OpportunityID, it.Title, it.Agency, nullable(it.Description), nullableFloatPtr(it.ContractValue),
		nullableStringPtr(it.DueDate), it.Status, it.Stage, it.Priority, it.Progress, nullableIntPtr(it.PwinScore),
		boolInt(it.BriefGenerated), it.CreatedAt, it.UpdatedAt)
	return err
}

func (r Repo) UpdatePipelineItem(ctx context.Context, tx *sql.Tx, it domain.PipelineItem) error {
	res, err := tx.ExecContext(ctx, `UPDATE pipeline_items SET opportunity_id=?, title=?, agency=?, description=?, contract_value=?, due_date=?, status=?, stage=?, priority=?, progress=?, pwin_score=?, brief_generated=?, updated_at=? WHERE id=?`,
		it.OpportunityID, it.Title, it.Agency, nullable(it.Description), nullableFloatPtr(it.ContractValue),
		nullableStringPtr(it.DueDate), it.Status, it.Stage, it.Priority, it.Progress, nullableIntPtr(it.PwinScore),
		boolInt(it.BriefGenerated), it.UpdatedAt, it.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeletePipelineItem(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM pipeline_items WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetPipelineItem(ctx context.Context, id string) (domain.PipelineItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+pipelineColumns+` FROM pipeline_items WHERE id=?`, id)
	return scanPipelineItem(row.Scan)
}

type PipelineFilters struct {
	Status   string
	Stage    string
	Priority string
	Page     int
	Limit    int
}

func (r Repo) ListPipelineItems(ctx context.Context, f PipelineFilters) ([]domain.PipelineItem, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Stage != "" {
		clauses = append(clauses, "stage=?")
		args = append(args, f.Stage)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + pipelineColumns + ` FROM pipeline_items ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Page > 1 {
			query += " OFFSET ?"
			args = append(args, (f.Page-1)*f.Limit)
		}
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PipelineItem
	for rows.Next() {
		it, err := scanPipelineItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

// ListActivePipelineItems returns items whose status marks an in-flight
// response artifact, newest first.
func (r Repo) ListActivePipelineItems(ctx context.Context, limit int) ([]domain.PipelineItem, error) {
	query := `SELECT ` + pipelineColumns + ` FROM pipeline_items WHERE status IN ('draft','in_progress','review') ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PipelineItem
	for rows.Next() {
		it, err := scanPipelineItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func (r Repo) PipelineStats(ctx context.Context) (domain.PipelineStats, error) {
	stats := domain.PipelineStats{
		ByStatus: map[string]int{},
		ByStage:  map[string]int{},
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT status, stage, COALESCE(contract_value,0), COALESCE(pwin_score,-1) FROM pipeline_items`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	pwinSum, pwinCount := 0, 0
	for rows.Next() {
		var status, stage string
		var value float64
		var pwin int
		if err := rows.Scan(&status, &stage, &value, &pwin); err != nil {
			return stats, err
		}
		stats.Total++
		stats.ByStatus[status]++
		stats.ByStage[stage]++
		stats.TotalContractValue += value
		if pwin >= 0 {
			pwinSum += pwin
			pwinCount++
		}
	}
	if pwinCount > 0 {
		stats.AveragePwin = float64(pwinSum) / float64(pwinCount)
	}
	return stats, rows.Err()
}

func (r Repo) InsertProposal(ctx context.Context, p domain.Proposal) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO proposals(id,opportunity_id,title,status,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.OpportunityID, p.Title, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProposal(ctx context.Context, id string) (domain.Proposal, error) {
	var p domain.Proposal
	err := r.DB.QueryRowContext(ctx, `SELECT id,opportunity_id,title,status,created_at,updated_at FROM proposals WHERE id=?`, id).
		Scan(&p.ID, &p.OpportunityID, &p.Title, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

type ProposalFilters struct {
	OpportunityID string
	Status        string
	Skip          int
	Limit         int
}

func (r Repo) ListProposals(ctx context.Context, f ProposalFilters) ([]domain.Proposal, error) {
	var clauses []string
	var args []any
	if f.OpportunityID != "" {
		clauses = append(clauses, "opportunity_id=?")
		args = append(args, f.OpportunityID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,opportunity_id,title,status,created_at,updated_at FROM proposals ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Skip > 0 {
			query += " OFFSET ?"
			args = append(args, f.Skip)
		}
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proposal
	for rows.Next() {
		var p domain.Proposal
		if err := rows.Scan(&p.ID, &p.OpportunityID, &p.Title, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertOpportunity(ctx context.Context, o domain.Opportunity) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR REPLACE INTO opportunities(id,title,agency,naics,response_deadline,posted_date,url,source) VALUES (?,?,?,?,?,?,?,?)`,
		o.ID, o.Title, nullable(o.Agency), nullable(o.NAICS), nullable(o.ResponseDeadline), nullable(o.PostedDate), nullable(o.URL), nullable(o.Source))
	return err
}

func (r Repo) ListOpportunities(ctx context.Context, query string, limit int) ([]domain.Opportunity, error) {
	clauses := "1=1"
	var args []any
	if query != "" {
		clauses = "(title LIKE ? OR agency LIKE ?)"
		like := "%" + query + "%"
		args = append(args, like, like)
	}
	q := `SELECT id,title,COALESCE(agency,''),COALESCE(naics,''),COALESCE(response_deadline,''),COALESCE(posted_date,''),COALESCE(url,''),COALESCE(source,'') FROM opportunities WHERE ` + clauses + ` ORDER BY response_deadline ASC, id ASC`
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Opportunity
	for rows.Next() {
		var o domain.Opportunity
		if err := rows.Scan(&o.ID, &o.Title, &o.Agency, &o.NAICS, &o.ResponseDeadline, &o.PostedDate, &o.URL, &o.Source); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entity, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entity, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entity.Valid {
			e.EntityID = entity.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
