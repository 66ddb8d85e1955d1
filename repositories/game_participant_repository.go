package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/caulonghn/club-manager/models"
	"github.com/lib/pq"
)

var (
	ErrGameParticipantNotFound      = errors.New("game participant not found")
	ErrGameParticipantConflict      = errors.New("member already registered for this game")
	ErrGameParticipantMemberInvalid = errors.New("game participant member invalid")
	ErrGameParticipantGameInvalid   = errors.New("game participant game invalid")
)

type GameParticipantRepository interface {
	ListByGame(ctx context.Context, exec SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error)
	FindByID(ctx context.Context, id int) (*models.GameParticipant, error)
	CreateBatch(ctx context.Context, exec SQLExecutor, participants []*models.GameParticipant) error
	DeleteByGame(ctx context.Context, exec SQLExecutor, gameID int) error
	// UpdateFields — точечный патч платёжных полей одной строки.
	UpdateFields(ctx context.Context, exec SQLExecutor, p *models.GameParticipant) error
	UpdatePayment(ctx context.Context, id int, hasPaid bool, paidAt *time.Time) error
	// ListUnpaidByMember возвращает неоплаченные участия члена клуба вместе с
	// данными игры (нужна cost_per_member для расчёта долга).
	ListUnpaidByMember(ctx context.Context, memberID int) ([]*models.GameParticipant, error)
}

type postgresGameParticipantRepository struct {
	db *sql.DB
}

func NewPostgresGameParticipantRepository(db *sql.DB) GameParticipantRepository {
	return &postgresGameParticipantRepository{db: db}
}

func (r *postgresGameParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGameParticipantRepository) ListByGame(ctx context.Context, exec SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error) {
	var query string
	if includeMember {
		query = `
			SELECT gp.id, gp.game_id, gp.member_id, gp.has_paid, gp.paid_at,
			       gp.pre_paid, gp.pre_paid_category, gp.custom_amount, gp.created_at,
			       m.id, m.name, m.phone, m.avatar_key, m.active, m.created_at
			FROM game_participants gp
			JOIN members m ON gp.member_id = m.id
			WHERE gp.game_id = $1
			ORDER BY m.name ASC`
	} else {
		query = `
			SELECT gp.id, gp.game_id, gp.member_id, gp.has_paid, gp.paid_at,
			       gp.pre_paid, gp.pre_paid_category, gp.custom_amount, gp.created_at
			FROM game_participants gp
			WHERE gp.game_id = $1
			ORDER BY gp.id ASC`
	}

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list game participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.GameParticipant, 0)
	for rows.Next() {
		var p models.GameParticipant
		scanDest := []interface{}{
			&p.ID, &p.GameID, &p.MemberID, &p.HasPaid, &p.PaidAt,
			&p.PrePaid, &p.PrePaidCategory, &p.CustomAmount, &p.CreatedAt,
		}
		var m models.Member
		if includeMember {
			scanDest = append(scanDest, &m.ID, &m.Name, &m.Phone, &m.AvatarKey, &m.Active, &m.CreatedAt)
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("failed to scan game participant row: %w", err)
		}
		if includeMember {
			p.Member = &m
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresGameParticipantRepository) FindByID(ctx context.Context, id int) (*models.GameParticipant, error) {
	query := `
		SELECT id, game_id, member_id, has_paid, paid_at, pre_paid, pre_paid_category, custom_amount, created_at
		FROM game_participants WHERE id = $1`

	p := &models.GameParticipant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.GameID, &p.MemberID, &p.HasPaid, &p.PaidAt,
		&p.PrePaid, &p.PrePaidCategory, &p.CustomAmount, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find game participant: %w", err)
	}
	return p, nil
}

func (r *postgresGameParticipantRepository) CreateBatch(ctx context.Context, exec SQLExecutor, participants []*models.GameParticipant) error {
	if len(participants) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO game_participants
			(game_id, member_id, has_paid, paid_at, pre_paid, pre_paid_category, custom_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	for _, p := range participants {
		err := executor.QueryRowContext(ctx, query,
			p.GameID,
			p.MemberID,
			p.HasPaid,
			p.PaidAt,
			p.PrePaid,
			p.PrePaidCategory,
			p.CustomAmount,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok {
				switch pqErr.Code {
				case "23505": // unique_violation
					return ErrGameParticipantConflict
				case "23503": // foreign_key_violation
					switch pqErr.Constraint {
					case "game_participants_member_id_fkey":
						return ErrGameParticipantMemberInvalid
					case "game_participants_game_id_fkey":
						return ErrGameParticipantGameInvalid
					}
				}
			}
			return fmt.Errorf("failed to create game participant for member %d: %w", p.MemberID, err)
		}
	}
	return nil
}

func (r *postgresGameParticipantRepository) DeleteByGame(ctx context.Context, exec SQLExecutor, gameID int) error {
	query := `DELETE FROM game_participants WHERE game_id = $1`
	// Ноль удалённых строк — не ошибка: у игры могло не быть участников.
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, gameID); err != nil {
		return fmt.Errorf("failed to delete game participants: %w", err)
	}
	return nil
}

func (r *postgresGameParticipantRepository) UpdateFields(ctx context.Context, exec SQLExecutor, p *models.GameParticipant) error {
	query := `
		UPDATE game_participants SET
			has_paid = $1, paid_at = $2, pre_paid = $3, pre_paid_category = $4, custom_amount = $5
		WHERE id = $6`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		p.HasPaid, p.PaidAt, p.PrePaid, p.PrePaidCategory, p.CustomAmount, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game participant %d: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrGameParticipantNotFound)
}

func (r *postgresGameParticipantRepository) UpdatePayment(ctx context.Context, id int, hasPaid bool, paidAt *time.Time) error {
	query := `UPDATE game_participants SET has_paid = $1, paid_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, hasPaid, paidAt, id)
	if err != nil {
		return fmt.Errorf("failed to update game participant payment: %w", err)
	}
	return checkAffectedRows(result, ErrGameParticipantNotFound)
}

func (r *postgresGameParticipantRepository) ListUnpaidByMember(ctx context.Context, memberID int) ([]*models.GameParticipant, error) {
	query := `
		SELECT gp.id, gp.game_id, gp.member_id, gp.has_paid, gp.paid_at,
		       gp.pre_paid, gp.pre_paid_category, gp.custom_amount, gp.created_at,
		       g.id, g.date, g.location, g.total_cost, g.cost_per_member
		FROM game_participants gp
		JOIN games g ON gp.game_id = g.id
		WHERE gp.member_id = $1 AND gp.has_paid = FALSE
		ORDER BY g.date DESC`

	rows, err := r.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid games for member %d: %w", memberID, err)
	}
	defer rows.Close()

	participants := make([]*models.GameParticipant, 0)
	for rows.Next() {
		var p models.GameParticipant
		var g models.Game
		if err := rows.Scan(
			&p.ID, &p.GameID, &p.MemberID, &p.HasPaid, &p.PaidAt,
			&p.PrePaid, &p.PrePaidCategory, &p.CustomAmount, &p.CreatedAt,
			&g.ID, &g.Date, &g.Location, &g.TotalCost, &g.CostPerMember,
		); err != nil {
			return nil, fmt.Errorf("failed to scan unpaid game participant row: %w", err)
		}
		p.Game = &g
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unpaid game participant rows: %w", err)
	}
	return participants, nil
}
