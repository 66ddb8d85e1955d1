package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/caulonghn/club-manager/models"
)

var ErrPersonalEventNotFound = errors.New("personal event not found")

type PersonalEventRepository interface {
	Create(ctx context.Context, event *models.PersonalEvent) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.PersonalEvent, error)
	List(ctx context.Context, limit, offset int) ([]*models.PersonalEvent, error)
	Update(ctx context.Context, exec SQLExecutor, event *models.PersonalEvent) error
	Delete(ctx context.Context, id int) error
}

type postgresPersonalEventRepository struct {
	db *sql.DB
}

func NewPostgresPersonalEventRepository(db *sql.DB) PersonalEventRepository {
	return &postgresPersonalEventRepository{db: db}
}

func (r *postgresPersonalEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPersonalEventRepository) Create(ctx context.Context, event *models.PersonalEvent) error {
	query := `
		INSERT INTO personal_events (title, description, date, location, total_cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.Date,
		event.Location,
		event.TotalCost,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create personal event: %w", err)
	}
	return nil
}

func (r *postgresPersonalEventRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.PersonalEvent, error) {
	query := `
		SELECT id, title, description, date, location, total_cost, created_at, updated_at
		FROM personal_events WHERE id = $1`

	e := &models.PersonalEvent{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.TotalCost, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPersonalEventNotFound
		}
		return nil, fmt.Errorf("failed to find personal event: %w", err)
	}
	return e, nil
}

func (r *postgresPersonalEventRepository) List(ctx context.Context, limit, offset int) ([]*models.PersonalEvent, error) {
	query := `
		SELECT id, title, description, date, location, total_cost, created_at, updated_at
		FROM personal_events
		ORDER BY date DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.PersonalEvent, 0)
	for rows.Next() {
		var e models.PersonalEvent
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.TotalCost, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan personal event row: %w", err)
		}
		events = append(events, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating personal event rows: %w", err)
	}
	return events, nil
}

func (r *postgresPersonalEventRepository) Update(ctx context.Context, exec SQLExecutor, event *models.PersonalEvent) error {
	query := `
		UPDATE personal_events SET
			title = $1, description = $2, date = $3, location = $4, total_cost = $5, updated_at = NOW()
		WHERE id = $6`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		event.Title, event.Description, event.Date, event.Location, event.TotalCost, event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update personal event: %w", err)
	}
	return checkAffectedRows(result, ErrPersonalEventNotFound)
}

func (r *postgresPersonalEventRepository) Delete(ctx context.Context, id int) error {
	// Участники события удаляются каскадом.
	query := `DELETE FROM personal_events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete personal event: %w", err)
	}
	return checkAffectedRows(result, ErrPersonalEventNotFound)
}
