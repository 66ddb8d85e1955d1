package services

import (
	"context"
	"testing"

	"github.com/caulonghn/club-manager/models"
	"github.com/caulonghn/club-manager/repositories"
	"github.com/caulonghn/club-manager/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	CreateFunc        func(ctx context.Context, user *models.User) error
	GetByIDFunc       func(ctx context.Context, id int) (*models.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	GetByMemberIDFunc func(ctx context.Context, memberID int) (*models.User, error)
	UpdateRoleFunc    func(ctx context.Context, id int, role models.UserRole) error
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	return f.CreateFunc(ctx, user)
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	return f.GetByIDFunc(ctx, id)
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.GetByEmailFunc(ctx, email)
}

func (f *fakeUserRepo) GetByMemberID(ctx context.Context, memberID int) (*models.User, error) {
	return f.GetByMemberIDFunc(ctx, memberID)
}

func (f *fakeUserRepo) UpdateRole(ctx context.Context, id int, role models.UserRole) error {
	return f.UpdateRoleFunc(ctx, id, role)
}

func TestRegisterHashesPasswordAndNormalizesEmail(t *testing.T) {
	var createdUser *models.User
	repo := &fakeUserRepo{
		CreateFunc: func(ctx context.Context, user *models.User) error {
			user.ID = 1
			copied := *user
			createdUser = &copied
			return nil
		},
	}
	svc := NewAuthService(repo)

	user, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Hoa Nguyen",
		Email:    "  Hoa@Example.COM ",
		Password: "correct horse",
	})
	require.NoError(t, err)

	assert.Equal(t, "hoa@example.com", createdUser.Email)
	assert.Equal(t, models.RoleMember, createdUser.Role)
	assert.NotEqual(t, "correct horse", createdUser.PasswordHash)
	assert.True(t, utils.CheckPasswordHash("correct horse", createdUser.PasswordHash))
	assert.Empty(t, user.PasswordHash, "hash must not leak in the response")
}

func TestRegisterEmailConflict(t *testing.T) {
	repo := &fakeUserRepo{
		CreateFunc: func(ctx context.Context, user *models.User) error {
			return repositories.ErrUserEmailConflict
		},
	}
	svc := NewAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name: "A", Email: "a@b.c", Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUserEmailConflict)
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("secret-password")
	require.NoError(t, err)

	repo := &fakeUserRepo{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email != "hoa@example.com" {
				return nil, repositories.ErrUserNotFound
			}
			return &models.User{ID: 1, Email: email, PasswordHash: hash, Role: models.RoleManager}, nil
		},
	}
	svc := NewAuthService(repo)

	t.Run("valid credentials", func(t *testing.T) {
		user, err := svc.Login(context.Background(), LoginInput{Email: "hoa@example.com", Password: "secret-password"})
		require.NoError(t, err)
		assert.Equal(t, 1, user.ID)
		assert.Empty(t, user.PasswordHash)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), LoginInput{Email: "hoa@example.com", Password: "nope"})
		assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
	})

	t.Run("unknown email maps to the same error", func(t *testing.T) {
		_, err := svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "secret-password"})
		assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
	})
}

func TestSetUserRoleRejectsUnknownRole(t *testing.T) {
	svc := NewAuthService(&fakeUserRepo{})

	err := svc.SetUserRole(context.Background(), 1, models.UserRole("owner"))
	assert.ErrorIs(t, err, ErrValidationFailed)
}
