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
	ErrEventParticipantNotFound      = errors.New("personal event participant not found")
	ErrEventParticipantConflict      = errors.New("member already registered for this event")
	ErrEventParticipantMemberInvalid = errors.New("personal event participant member invalid")
	ErrEventParticipantEventInvalid  = errors.New("personal event participant event invalid")
)

type PersonalEventParticipantRepository interface {
	ListByEvent(ctx context.Context, exec SQLExecutor, eventID int, includeMember bool) ([]*models.PersonalEventParticipant, error)
	FindByID(ctx context.Context, id int) (*models.PersonalEventParticipant, error)
	CreateBatch(ctx context.Context, exec SQLExecutor, participants []*models.PersonalEventParticipant) error
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
	UpdateFields(ctx context.Context, exec SQLExecutor, p *models.PersonalEventParticipant) error
	UpdatePayment(ctx context.Context, id int, hasPaid bool, paidAt *time.Time) error
	ListUnpaidByMember(ctx context.Context, memberID int) ([]*models.PersonalEventParticipant, error)
}

type postgresPersonalEventParticipantRepository struct {
	db *sql.DB
}

func NewPostgresPersonalEventParticipantRepository(db *sql.DB) PersonalEventParticipantRepository {
	return &postgresPersonalEventParticipantRepository{db: db}
}

func (r *postgresPersonalEventParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPersonalEventParticipantRepository) ListByEvent(ctx context.Context, exec SQLExecutor, eventID int, includeMember bool) ([]*models.PersonalEventParticipant, error) {
	var query string
	if includeMember {
		query = `
			SELECT ep.id, ep.event_id, ep.member_id, ep.has_paid, ep.paid_at,
			       ep.pre_paid, ep.pre_paid_category, ep.custom_amount, ep.created_at,
			       m.id, m.name, m.phone, m.avatar_key, m.active, m.created_at
			FROM personal_event_participants ep
			JOIN members m ON ep.member_id = m.id
			WHERE ep.event_id = $1
			ORDER BY m.name ASC`
	} else {
		query = `
			SELECT ep.id, ep.event_id, ep.member_id, ep.has_paid, ep.paid_at,
			       ep.pre_paid, ep.pre_paid_category, ep.custom_amount, ep.created_at
			FROM personal_event_participants ep
			WHERE ep.event_id = $1
			ORDER BY ep.id ASC`
	}

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal event participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.PersonalEventParticipant, 0)
	for rows.Next() {
		var p models.PersonalEventParticipant
		scanDest := []interface{}{
			&p.ID, &p.EventID, &p.MemberID, &p.HasPaid, &p.PaidAt,
			&p.PrePaid, &p.PrePaidCategory, &p.CustomAmount, &p.CreatedAt,
		}
		var m models.Member
		if includeMember {
			scanDest = append(scanDest, &m.ID, &m.Name, &m.Phone, &m.AvatarKey, &m.Active, &m.CreatedAt)
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("failed to scan personal event participant row: %w", err)
		}
		if includeMember {
			p.Member = &m
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating personal event participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresPersonalEventParticipantRepository) FindByID(ctx context.Context, id int) (*models.PersonalEventParticipant, error) {
	query := `
		SELECT id, event_id, member_id, has_paid, paid_at, pre_paid, pre_paid_category, custom_amount, created_at
		FROM personal_event_participants WHERE id = $1`

	p := &models.PersonalEventParticipant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.EventID, &p.MemberID, &p.HasPaid, &p.PaidAt,
		&p.PrePaid, &p.PrePaidCategory, &p.CustomAmount, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find personal event participant: %w", err)
	}
	return p, nil
}

func (r *postgresPersonalEventParticipantRepository) CreateBatch(ctx context.Context, exec SQLExecutor, participants []*models.PersonalEventParticipant) error {
	if len(participants) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO personal_event_participants
			(event_id, member_id, has_paid, paid_at, pre_paid, pre_paid_category, custom_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	for _, p := range participants {
		err := executor.QueryRowContext(ctx, query,
			p.EventID,
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
					return ErrEventParticipantConflict
				case "23503": // foreign_key_violation
					switch pqErr.Constraint {
					case "personal_event_participants_member_id_fkey":
						return ErrEventParticipantMemberInvalid
					case "personal_event_participants_event_id_fkey":
						return ErrEventParticipantEventInvalid
					}
				}
			}
			return fmt.Errorf("failed to create personal event participant for member %d: %w", p.MemberID, err)
		}
	}
	return nil
}

func (r *postgresPersonalEventParticipantRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	query := `DELETE FROM personal_event_participants WHERE event_id = $1`
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("failed to delete personal event participants: %w", err)
	}
	return nil
}

func (r *postgresPersonalEventParticipantRepository) UpdateFields(ctx context.Context, exec SQLExecutor, p *models.PersonalEventParticipant) error {
	query := `
		UPDATE personal_event_participants SET
			has_paid = $1, paid_at = $2, pre_paid = $3, pre_paid_category = $4, custom_amount = $5
		WHERE id = $6`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		p.HasPaid, p.PaidAt, p.PrePaid, p.PrePaidCategory, p.CustomAmount, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update personal event participant %d: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrEventParticipantNotFound)
}

func (r *postgresPersonalEventParticipantRepository) UpdatePayment(ctx context.Context, id int, hasPaid bool, paidAt *time.Time) error {
	query := `UPDATE personal_event_participants SET has_paid = $1, paid_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, hasPaid, paidAt, id)
	if err != nil {
		return fmt.Errorf("failed to update personal event participant payment: %w", err)
	}
	return checkAffectedRows(result, ErrEventParticipantNotFound)
}

func (r *postgresPersonalEventParticipantRepository) ListUnpaidByMember(ctx context.Context, memberID int) ([]*models.PersonalEventParticipant, error) {
	query := `
		SELECT ep.id, ep.event_id, ep.member_id, ep.has_paid, ep.paid_at,
		       ep.pre_paid, ep.pre_paid_category, ep.custom_amount, ep.created_at,
		       e.id, e.title, e.date, e.total_cost
		FROM personal_event_participants ep
		JOIN personal_events e ON ep.event_id = e.id
		WHERE ep.member_id = $1 AND ep.has_paid = FALSE
		ORDER BY e.date DESC`

	rows, err := r.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid events for member %d: %w", memberID, err)
	}
	defer rows.Close()

	participants := make([]*models.PersonalEventParticipant, 0)
	for rows.Next() {
		var p models.PersonalEventParticipant
		var e models.PersonalEvent
		if err := rows.Scan(
			&p.ID, &p.EventID, &p.MemberID, &p.HasPaid, &p.PaidAt,
			&p.PrePaid, &p.PrePaidCategory, &p.CustomAmount, &p.CreatedAt,
			&e.ID, &e.Title, &e.Date, &e.TotalCost,
		); err != nil {
			return nil, fmt.Errorf("failed to scan unpaid event participant row: %w", err)
		}
		p.Event = &e
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unpaid event participant rows: %w", err)
	}
	return participants, nil
}
