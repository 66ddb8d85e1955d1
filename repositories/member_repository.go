package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/caulonghn/club-manager/models"
	"github.com/lib/pq"
)

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberPhoneConflict = errors.New("member phone conflict")
	// Участник упоминается в играх/событиях — физическое удаление запрещено БД.
	ErrMemberReferenced = errors.New("member is referenced by games or events")
)

type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id int) (*models.Member, error)
	List(ctx context.Context, onlyActive bool) ([]*models.Member, error)
	Update(ctx context.Context, member *models.Member) error
	UpdateAvatarKey(ctx context.Context, id int, avatarKey string) error
	Delete(ctx context.Context, id int) error
}

type postgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) MemberRepository {
	return &postgresMemberRepository{db: db}
}

func (r *postgresMemberRepository) Create(ctx context.Context, member *models.Member) error {
	query := `
		INSERT INTO members (name, phone, active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		member.Name,
		member.Phone,
		member.Active,
	).Scan(&member.ID, &member.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "members_phone_key" {
				return ErrMemberPhoneConflict
			}
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (r *postgresMemberRepository) GetByID(ctx context.Context, id int) (*models.Member, error) {
	query := `SELECT id, name, phone, avatar_key, active, created_at FROM members WHERE id = $1`

	m := &models.Member{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Phone, &m.AvatarKey, &m.Active, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

func (r *postgresMemberRepository) List(ctx context.Context, onlyActive bool) ([]*models.Member, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT id, name, phone, avatar_key, active, created_at FROM members`)
	if onlyActive {
		queryBuilder.WriteString(` WHERE active = TRUE`)
	}
	queryBuilder.WriteString(` ORDER BY name ASC`)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.Member, 0)
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.AvatarKey, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}

func (r *postgresMemberRepository) Update(ctx context.Context, member *models.Member) error {
	query := `UPDATE members SET name = $1, phone = $2, active = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, member.Name, member.Phone, member.Active, member.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "members_phone_key" {
				return ErrMemberPhoneConflict
			}
		}
		return fmt.Errorf("failed to update member: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) UpdateAvatarKey(ctx context.Context, id int, avatarKey string) error {
	query := `UPDATE members SET avatar_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, avatarKey, id)
	if err != nil {
		return fmt.Errorf("failed to update member avatar key: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM members WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrMemberReferenced
		}
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}
