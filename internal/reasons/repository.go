package reasons

import (
	"context"
	"errors"
	"time"

	"viacrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a reason does not exist in the tenant or was deleted.
var ErrNotFound = errors.New("reason not found")

// Repository persists the decision reason catalog.
type Repository interface {
	List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]domain.DecisionReason, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (domain.DecisionReason, error)
	Create(ctx context.Context, reason domain.DecisionReason) (domain.DecisionReason, error)
	Update(ctx context.Context, reason domain.DecisionReason) (domain.DecisionReason, error)
	SoftDelete(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error
}

// PgRepository is the PostgreSQL Repository.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const reasonColumns = `id, tenant_id, label, active, sort_order, created_at, updated_at, deleted_at`

func scanReason(row pgx.Row) (domain.DecisionReason, error) {
	var r domain.DecisionReason
	err := row.Scan(&r.ID, &r.TenantID, &r.Label, &r.Active, &r.SortOrder, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DecisionReason{}, ErrNotFound
	}
	return r, err
}

func (r *PgRepository) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]domain.DecisionReason, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reasonColumns+`
		FROM manager_decision_reasons
		WHERE tenant_id = $1 AND deleted_at IS NULL AND ($2 = false OR active)
		ORDER BY sort_order ASC, created_at ASC`, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.DecisionReason, 0)
	for rows.Next() {
		item, err := scanReason(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PgRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (domain.DecisionReason, error) {
	return scanReason(r.pool.QueryRow(ctx, `
		SELECT `+reasonColumns+`
		FROM manager_decision_reasons
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`, tenantID, id))
}

func (r *PgRepository) Create(ctx context.Context, reason domain.DecisionReason) (domain.DecisionReason, error) {
	if reason.ID == uuid.Nil {
		reason.ID = uuid.New()
	}
	return scanReason(r.pool.QueryRow(ctx, `
		INSERT INTO manager_decision_reasons (id, tenant_id, label, active, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+reasonColumns, reason.ID, reason.TenantID, reason.Label, reason.Active, reason.SortOrder))
}

func (r *PgRepository) Update(ctx context.Context, reason domain.DecisionReason) (domain.DecisionReason, error) {
	return scanReason(r.pool.QueryRow(ctx, `
		UPDATE manager_decision_reasons
		SET label = $3, active = $4, sort_order = $5, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING `+reasonColumns, reason.TenantID, reason.ID, reason.Label, reason.Active, reason.SortOrder))
}

func (r *PgRepository) SoftDelete(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE manager_decision_reasons
		SET deleted_at = $3, active = false, updated_at = $3
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`, tenantID, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*PgRepository)(nil)
