package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/platform/apperr"
)

const (
	leadNotFoundMessage        = "lead not found"
	interactionNotFoundMessage = "interaction not found"

	leadColumns = "id, name, phone, status, assigned_broker_id, assigned_at, last_contact_at, created_at, updated_at"

	interactionColumns = "id, lead_id, broker_id, status, sent_at, responded_at, timed_out_at, created_at, updated_at"
)

// Repo implements the leads repository backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Upsert refreshes contact on an existing lead or inserts a pending one.
// The lookup accepts any phone form; the insert stores the canonical form.
func (r *Repo) Upsert(ctx context.Context, params UpsertParams, phoneForms []string) (Lead, error) {
	update := `
		UPDATE leads
		SET last_contact_at = now(),
			name = CASE WHEN $2 <> '' THEN $2 ELSE name END,
			updated_at = now()
		WHERE phone = ANY($1)
		RETURNING ` + leadColumns

	lead, err := r.scanLead(r.pool.QueryRow(ctx, update, phoneForms, params.Name))
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, fmt.Errorf("upsert lead: %w", err)
	}

	insert := `
		INSERT INTO leads (name, phone, status, last_contact_at)
		VALUES ($1, $2, $3, now())
		RETURNING ` + leadColumns

	lead, err = r.scanLead(r.pool.QueryRow(ctx, insert, params.Name, params.Phone, domain.LeadPending))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost an insert race; the row exists now, take the update path.
			lead, err = r.scanLead(r.pool.QueryRow(ctx, update, phoneForms, params.Name))
			if err != nil {
				return Lead{}, fmt.Errorf("upsert lead after conflict: %w", err)
			}
			return lead, nil
		}
		return Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

// GetByID retrieves a lead by id.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := r.scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// FindByPhones retrieves the lead matching any of the phone forms.
func (r *Repo) FindByPhones(ctx context.Context, phones []string) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone = ANY($1) LIMIT 1`

	lead, err := r.scanLead(r.pool.QueryRow(ctx, query, phones))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("find lead by phone: %w", err)
	}
	return lead, nil
}

// PhoneInUse reports whether any lead holds one of the phone forms.
func (r *Repo) PhoneInUse(ctx context.Context, phones []string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE phone = ANY($1))`, phones).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lead phone lookup: %w", err)
	}
	return exists, nil
}

// List returns leads newest first, optionally filtered by status.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)

	var total int
	countQuery := `SELECT COUNT(*) FROM leads WHERE ($1::text IS NULL OR status = $1)`
	if err := r.pool.QueryRow(ctx, countQuery, statusArg(params.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, statusArg(params.Status), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := r.scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, total, rows.Err()
}

// Assign marks the lead as taken by the broker.
func (r *Repo) Assign(ctx context.Context, leadID, brokerID uuid.UUID) (Lead, error) {
	query := `
		UPDATE leads
		SET status = $3, assigned_broker_id = $2, assigned_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING ` + leadColumns

	lead, err := r.scanLead(r.pool.QueryRow(ctx, query, leadID, brokerID, domain.LeadAssigned))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("assign lead: %w", err)
	}
	return lead, nil
}

// ResetToPending clears the assignment so the rotation can restart.
func (r *Repo) ResetToPending(ctx context.Context, leadID uuid.UUID) (Lead, error) {
	query := `
		UPDATE leads
		SET status = $2, assigned_broker_id = NULL, assigned_at = NULL, updated_at = now()
		WHERE id = $1
		RETURNING ` + leadColumns

	lead, err := r.scanLead(r.pool.QueryRow(ctx, query, leadID, domain.LeadPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("reset lead: %w", err)
	}
	return lead, nil
}

// CreateInteraction opens a new offer cycle. A partial unique index keeps at
// most one sent interaction per lead.
func (r *Repo) CreateInteraction(ctx context.Context, leadID, brokerID uuid.UUID) (Interaction, error) {
	query := `
		INSERT INTO interactions (lead_id, broker_id, status, sent_at)
		VALUES ($1, $2, $3, now())
		RETURNING ` + interactionColumns

	interaction, err := r.scanInteraction(r.pool.QueryRow(ctx, query, leadID, brokerID, domain.InteractionSent))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Interaction{}, apperr.Conflict("lead already has an open interaction")
		}
		return Interaction{}, fmt.Errorf("create interaction: %w", err)
	}
	return interaction, nil
}

// GetInteraction retrieves an interaction by id.
func (r *Repo) GetInteraction(ctx context.Context, id uuid.UUID) (Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions WHERE id = $1`

	interaction, err := r.scanInteraction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Interaction{}, apperr.NotFound(interactionNotFoundMessage)
		}
		return Interaction{}, fmt.Errorf("get interaction: %w", err)
	}
	return interaction, nil
}

// FindOpenByBroker returns the broker's most recent open interaction.
func (r *Repo) FindOpenByBroker(ctx context.Context, brokerID uuid.UUID) (Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE broker_id = $1 AND status = $2
		ORDER BY sent_at DESC
		LIMIT 1`

	interaction, err := r.scanInteraction(r.pool.QueryRow(ctx, query, brokerID, domain.InteractionSent))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Interaction{}, apperr.NotFound("broker has no open interaction")
		}
		return Interaction{}, fmt.Errorf("find open interaction: %w", err)
	}
	return interaction, nil
}

// CloseInteraction moves a sent interaction to a terminal status. The status
// guard in the WHERE clause makes the transition first-writer-wins: the
// losing side of a reply-versus-timer race gets InvalidState back.
// responded_at is stamped only when the broker actually answered; a missed
// window stamps timed_out_at instead.
func (r *Repo) CloseInteraction(ctx context.Context, id uuid.UUID, to domain.InteractionStatus) (Interaction, error) {
	query := `
		UPDATE interactions
		SET status = $2,
		    responded_at = CASE WHEN $2::text IN ('accepted', 'declined') THEN now() ELSE responded_at END,
		    timed_out_at = CASE WHEN $2::text = 'timed_out' THEN now() ELSE timed_out_at END,
		    updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + interactionColumns

	interaction, err := r.scanInteraction(r.pool.QueryRow(ctx, query, id, to, domain.InteractionSent))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetInteraction(ctx, id); getErr != nil {
				return Interaction{}, getErr
			}
			return Interaction{}, apperr.InvalidState("interaction already closed")
		}
		return Interaction{}, fmt.Errorf("close interaction: %w", err)
	}
	return interaction, nil
}

// ListInteractions returns interactions newest first with optional filters.
func (r *Repo) ListInteractions(ctx context.Context, params InteractionListParams) ([]Interaction, int, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)

	filter := `($1::uuid IS NULL OR lead_id = $1)
		AND ($2::uuid IS NULL OR broker_id = $2)
		AND ($3::text IS NULL OR status = $3)`

	var total int
	countQuery := `SELECT COUNT(*) FROM interactions WHERE ` + filter
	if err := r.pool.QueryRow(ctx, countQuery, params.LeadID, params.BrokerID, interactionStatusArg(params.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count interactions: %w", err)
	}

	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE ` + filter + `
		ORDER BY sent_at DESC
		LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, query,
		params.LeadID, params.BrokerID, interactionStatusArg(params.Status),
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	interactions := make([]Interaction, 0)
	for rows.Next() {
		interaction, err := r.scanInteraction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan interaction: %w", err)
		}
		interactions = append(interactions, interaction)
	}
	return interactions, total, rows.Err()
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func statusArg(status *domain.LeadStatus) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}

func interactionStatusArg(status *domain.InteractionStatus) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}

func (r *Repo) scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Phone, &lead.Status,
		&lead.AssignedBrokerID, &lead.AssignedAt, &lead.LastContactAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

func (r *Repo) scanInteraction(row pgx.Row) (Interaction, error) {
	var interaction Interaction
	err := row.Scan(
		&interaction.ID, &interaction.LeadID, &interaction.BrokerID,
		&interaction.Status, &interaction.SentAt, &interaction.RespondedAt,
		&interaction.TimedOutAt, &interaction.CreatedAt, &interaction.UpdatedAt,
	)
	return interaction, err
}
