package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caulonghn/club-manager/models"
)

var ErrGameNotFound = errors.New("game not found")

// ListGamesFilter — параметры листинга игр.
type ListGamesFilter struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error)
	List(ctx context.Context, filter ListGamesFilter) ([]*models.Game, error)
	// Update обновляет скалярные поля игры. Выполняется внутри транзакции
	// сверки состава, поэтому принимает SQLExecutor.
	Update(ctx context.Context, exec SQLExecutor, game *models.Game) error
	Delete(ctx context.Context, id int) error
}

type postgresGameRepository struct {
	db *sql.DB
}

func NewPostgresGameRepository(db *sql.DB) GameRepository {
	return &postgresGameRepository{db: db}
}

func (r *postgresGameRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games
			(date, location, yard_cost, shuttle_cock_quantity, shuttle_cock_price,
			 other_fees, total_cost, cost_per_member)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		game.Date,
		game.Location,
		game.YardCost,
		game.ShuttleCockQuantity,
		game.ShuttleCockPrice,
		game.OtherFees,
		game.TotalCost,
		game.CostPerMember,
	).Scan(&game.ID, &game.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (r *postgresGameRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error) {
	query := `
		SELECT id, date, location, yard_cost, shuttle_cock_quantity, shuttle_cock_price,
		       other_fees, total_cost, cost_per_member, created_at
		FROM games WHERE id = $1`

	g := &models.Game{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Date, &g.Location, &g.YardCost, &g.ShuttleCockQuantity,
		&g.ShuttleCockPrice, &g.OtherFees, &g.TotalCost, &g.CostPerMember, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to find game: %w", err)
	}
	return g, nil
}

func (r *postgresGameRepository) List(ctx context.Context, filter ListGamesFilter) ([]*models.Game, error) {
	var queryBuilder strings.Builder
	args := make([]interface{}, 0, 4)
	argCounter := 1

	queryBuilder.WriteString(`
		SELECT id, date, location, yard_cost, shuttle_cock_quantity, shuttle_cock_price,
		       other_fees, total_cost, cost_per_member, created_at
		FROM games`)

	conditions := make([]string, 0, 2)
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argCounter))
		args = append(args, *filter.From)
		argCounter++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argCounter))
		args = append(args, *filter.To)
		argCounter++
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY date DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCounter, argCounter+1))
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	games := make([]*models.Game, 0)
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(
			&g.ID, &g.Date, &g.Location, &g.YardCost, &g.ShuttleCockQuantity,
			&g.ShuttleCockPrice, &g.OtherFees, &g.TotalCost, &g.CostPerMember, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		games = append(games, &g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game rows: %w", err)
	}
	return games, nil
}

func (r *postgresGameRepository) Update(ctx context.Context, exec SQLExecutor, game *models.Game) error {
	query := `
		UPDATE games SET
			date = $1, location = $2, yard_cost = $3, shuttle_cock_quantity = $4,
			shuttle_cock_price = $5, other_fees = $6, total_cost = $7, cost_per_member = $8
		WHERE id = $9`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		game.Date,
		game.Location,
		game.YardCost,
		game.ShuttleCockQuantity,
		game.ShuttleCockPrice,
		game.OtherFees,
		game.TotalCost,
		game.CostPerMember,
		game.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) Delete(ctx context.Context, id int) error {
	// Строки участников удаляются каскадом (FK ON DELETE CASCADE).
	query := `DELETE FROM games WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}
