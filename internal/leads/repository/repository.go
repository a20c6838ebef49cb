package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"viacrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
	queries
}

type queries struct {
	db dbtx
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{db: pool}}
}

// InTx runs fn inside a read-committed transaction.
func (r *Repository) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const leadColumns = `id, tenant_id, name, phone, phone_key, email, note, origin,
	needs_manager_review, queue_priority, last_inbound_at, assigned_user_id,
	branch_id, status, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var status string
	err := row.Scan(
		&l.ID, &l.TenantID, &l.Name, &l.Phone, &l.PhoneKey, &l.Email, &l.Note, &l.Origin,
		&l.NeedsManagerReview, &l.QueuePriority, &l.LastInboundAt, &l.AssignedUserID,
		&l.BranchID, &status, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	l.Status = domain.LeadStatus(status)
	return l, nil
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	defer rows.Close()
	items := make([]domain.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (q *queries) GetByID(ctx context.Context, tenantID, id uuid.UUID, forUpdate bool) (domain.Lead, error) {
	return scanLead(q.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id = $1 AND id = $2`+lockClause(forUpdate),
		tenantID, id))
}

func (q *queries) FindByPhoneKey(ctx context.Context, tenantID uuid.UUID, key string, forUpdate bool) (domain.Lead, error) {
	return scanLead(q.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id = $1 AND phone_key = $2`+lockClause(forUpdate),
		tenantID, key))
}

func (q *queries) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	var status *string
	if params.Status != nil {
		s := string(*params.Status)
		status = &s
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1
			AND ($2::text IS NULL OR status = $2)
			AND ($3::uuid IS NULL OR assigned_user_id = $3)
			AND ($4::uuid IS NULL OR branch_id = $4)
		ORDER BY created_at DESC
	`, params.TenantID, status, params.AssignedUserID, params.BranchID)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

func (q *queries) ManagerQueue(ctx context.Context, tenantID uuid.UUID) ([]domain.Lead, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND needs_manager_review
		ORDER BY last_inbound_at DESC NULLS LAST, created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

func (q *queries) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}
	created, err := scanLead(q.db.QueryRow(ctx, `
		INSERT INTO leads (
			id, tenant_id, name, phone, phone_key, email, note, origin,
			needs_manager_review, queue_priority, last_inbound_at, assigned_user_id,
			branch_id, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+leadColumns,
		lead.ID, lead.TenantID, lead.Name, lead.Phone, lead.PhoneKey, lead.Email, lead.Note, lead.Origin,
		lead.NeedsManagerReview, lead.QueuePriority, lead.LastInboundAt, lead.AssignedUserID,
		lead.BranchID, string(lead.Status),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Lead{}, ErrConflict
		}
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return created, nil
}

func (q *queries) Update(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	updated, err := scanLead(q.db.QueryRow(ctx, `
		UPDATE leads SET
			name = $3, phone = $4, phone_key = $5, email = $6, note = $7, origin = $8,
			needs_manager_review = $9, queue_priority = $10, last_inbound_at = $11,
			assigned_user_id = $12, branch_id = $13, status = $14, updated_at = $15
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+leadColumns,
		lead.TenantID, lead.ID, lead.Name, lead.Phone, lead.PhoneKey, lead.Email, lead.Note, lead.Origin,
		lead.NeedsManagerReview, lead.QueuePriority, lead.LastInboundAt,
		lead.AssignedUserID, lead.BranchID, string(lead.Status), time.Now().UTC(),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Lead{}, ErrConflict
		}
		if errors.Is(err, ErrNotFound) {
			return domain.Lead{}, err
		}
		return domain.Lead{}, fmt.Errorf("update lead: %w", err)
	}
	return updated, nil
}

func (q *queries) AppendEvent(ctx context.Context, event domain.LeadEvent) (domain.LeadEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	err := q.db.QueryRow(ctx, `
		INSERT INTO lead_events (id, tenant_id, lead_id, channel, is_reentry, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, event.ID, event.TenantID, event.LeadID, event.Channel, event.IsReentry, []byte(payload)).Scan(&event.CreatedAt)
	if err != nil {
		return domain.LeadEvent{}, fmt.Errorf("append lead event: %w", err)
	}
	event.Payload = payload
	return event, nil
}

func (q *queries) ListEvents(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.LeadEvent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, lead_id, channel, is_reentry, payload, created_at
		FROM lead_events
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at ASC, id ASC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LeadEvent, 0)
	for rows.Next() {
		var ev domain.LeadEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.LeadID, &ev.Channel, &ev.IsReentry, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		items = append(items, ev)
	}
	return items, rows.Err()
}

var _ Store = (*Repository)(nil)
