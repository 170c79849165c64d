package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadrouter_backend/platform/apperr"
)

const (
	brokerNotFoundMessage   = "broker not found"
	brokerPhoneTakenMessage = "phone already registered as broker"

	brokerColumns = "id, name, phone, active, queue_position, created_at, updated_at"
)

// Repo implements the brokers repository backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new brokers repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Create inserts a broker at the end of the queue.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Broker, error) {
	query := `
		INSERT INTO brokers (name, phone, queue_position)
		VALUES ($1, $2, (SELECT COALESCE(MAX(queue_position), 0) + 1 FROM brokers))
		RETURNING ` + brokerColumns

	broker, err := r.scanRow(r.pool.QueryRow(ctx, query, params.Name, params.Phone))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Broker{}, apperr.Conflict(brokerPhoneTakenMessage)
		}
		return Broker{}, fmt.Errorf("create broker: %w", err)
	}
	return broker, nil
}

// GetByID retrieves a broker by id.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Broker, error) {
	query := `SELECT ` + brokerColumns + ` FROM brokers WHERE id = $1`

	broker, err := r.scanRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Broker{}, apperr.NotFound(brokerNotFoundMessage)
		}
		return Broker{}, fmt.Errorf("get broker: %w", err)
	}
	return broker, nil
}

// FindByPhones retrieves the broker matching any of the canonical phone forms.
func (r *Repo) FindByPhones(ctx context.Context, phones []string) (Broker, error) {
	query := `SELECT ` + brokerColumns + ` FROM brokers WHERE phone = ANY($1) LIMIT 1`

	broker, err := r.scanRow(r.pool.QueryRow(ctx, query, phones))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Broker{}, apperr.NotFound(brokerNotFoundMessage)
		}
		return Broker{}, fmt.Errorf("find broker by phone: %w", err)
	}
	return broker, nil
}

// List returns all brokers in rotation order.
func (r *Repo) List(ctx context.Context) ([]Broker, error) {
	query := `SELECT ` + brokerColumns + ` FROM brokers ORDER BY queue_position ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list brokers: %w", err)
	}
	defer rows.Close()

	brokers := make([]Broker, 0)
	for rows.Next() {
		broker, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan broker: %w", err)
		}
		brokers = append(brokers, broker)
	}
	return brokers, rows.Err()
}

// Update modifies name and/or phone of a broker.
func (r *Repo) Update(ctx context.Context, params UpdateParams) (Broker, error) {
	query := `
		UPDATE brokers
		SET name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + brokerColumns

	broker, err := r.scanRow(r.pool.QueryRow(ctx, query, params.ID, params.Name, params.Phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Broker{}, apperr.NotFound(brokerNotFoundMessage)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Broker{}, apperr.Conflict(brokerPhoneTakenMessage)
		}
		return Broker{}, fmt.Errorf("update broker: %w", err)
	}
	return broker, nil
}

// Delete removes a broker. The caller renumbers the survivors.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM brokers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete broker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(brokerNotFoundMessage)
	}
	return nil
}

// NextActive returns the head of the rotation among active brokers.
func (r *Repo) NextActive(ctx context.Context) (Broker, error) {
	query := `SELECT ` + brokerColumns + ` FROM brokers WHERE active ORDER BY queue_position ASC LIMIT 1`

	broker, err := r.scanRow(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Broker{}, apperr.NotFound("no active broker in queue")
		}
		return Broker{}, fmt.Errorf("next active broker: %w", err)
	}
	return broker, nil
}

// SetActive flips the rotation flag only; the queue position is untouched so
// a reactivated broker resumes at the same relative place.
func (r *Repo) SetActive(ctx context.Context, id uuid.UUID, active bool) (Broker, error) {
	query := `
		UPDATE brokers SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + brokerColumns

	broker, err := r.scanRow(r.pool.QueryRow(ctx, query, id, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Broker{}, apperr.NotFound(brokerNotFoundMessage)
		}
		return Broker{}, fmt.Errorf("set broker active: %w", err)
	}
	return broker, nil
}

// UpdatePositions applies a renumbering pass atomically.
func (r *Repo) UpdatePositions(ctx context.Context, updates []PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin position update: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Park positions out of range first so the unique index never sees an
	// intermediate collision while rows swap places.
	if _, err := tx.Exec(ctx, `UPDATE brokers SET queue_position = -queue_position WHERE id = ANY($1)`, idsOf(updates)); err != nil {
		return fmt.Errorf("park positions: %w", err)
	}

	for _, update := range updates {
		tag, err := tx.Exec(ctx,
			`UPDATE brokers SET queue_position = $2, updated_at = now() WHERE id = $1`,
			update.ID, update.QueuePosition,
		)
		if err != nil {
			return fmt.Errorf("update position: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound(brokerNotFoundMessage)
		}
	}

	return tx.Commit(ctx)
}

func idsOf(updates []PositionUpdate) []uuid.UUID {
	ids := make([]uuid.UUID, len(updates))
	for i, update := range updates {
		ids[i] = update.ID
	}
	return ids
}

func (r *Repo) scanRow(row pgx.Row) (Broker, error) {
	var broker Broker
	err := row.Scan(
		&broker.ID, &broker.Name, &broker.Phone, &broker.Active,
		&broker.QueuePosition, &broker.CreatedAt, &broker.UpdatedAt,
	)
	return broker, err
}
