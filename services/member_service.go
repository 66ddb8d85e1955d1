package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caulonghn/club-manager/models"
	"github.com/caulonghn/club-manager/repositories"
	"github.com/caulonghn/club-manager/storage"
)

type CreateMemberInput struct {
	Name  string  `json:"name" validate:"required"`
	Phone *string `json:"phone"`
}

type UpdateMemberInput struct {
	Name   *string `json:"name"`
	Phone  *string `json:"phone"`
	Active *bool   `json:"active"`
}

type MemberService interface {
	CreateMember(ctx context.Context, input CreateMemberInput) (*models.Member, error)
	GetMemberByID(ctx context.Context, id int) (*models.Member, error)
	ListMembers(ctx context.Context, onlyActive bool) ([]*models.Member, error)
	UpdateMember(ctx context.Context, id int, input UpdateMemberInput) (*models.Member, error)
	DeleteMember(ctx context.Context, id int) error
	UploadAvatar(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Member, error)
}

type memberService struct {
	memberRepo repositories.MemberRepository
	uploader   storage.FileUploader
	logger     *slog.Logger
}

func NewMemberService(memberRepo repositories.MemberRepository, uploader storage.FileUploader, logger *slog.Logger) MemberService {
	return &memberService{
		memberRepo: memberRepo,
		uploader:   uploader,
		logger:     logger,
	}
}

// populateAvatarURL выставляет публичный URL аватара по ключу в хранилище.
func (s *memberService) populateAvatarURL(member *models.Member) {
	if member == nil || s.uploader == nil || member.AvatarKey == nil || *member.AvatarKey == "" {
		return
	}
	url := s.uploader.PublicURL(*member.AvatarKey)
	if url != "" {
		member.AvatarURL = &url
	}
}

func (s *memberService) CreateMember(ctx context.Context, input CreateMemberInput) (*models.Member, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrMemberNameRequired
	}

	member := &models.Member{
		Name:   strings.TrimSpace(input.Name),
		Phone:  input.Phone,
		Active: true,
	}

	if err := s.memberRepo.Create(ctx, member); err != nil {
		if errors.Is(err, repositories.ErrMemberPhoneConflict) {
			return nil, ErrMemberPhoneConflict
		}
		s.logger.ErrorContext(ctx, "Failed to create member", slog.Any("error", err))
		return nil, err
	}
	return member, nil
}

func (s *memberService) GetMemberByID(ctx context.Context, id int) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	s.populateAvatarURL(member)
	return member, nil
}

func (s *memberService) ListMembers(ctx context.Context, onlyActive bool) ([]*models.Member, error) {
	members, err := s.memberRepo.List(ctx, onlyActive)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		s.populateAvatarURL(m)
	}
	return members, nil
}

func (s *memberService) UpdateMember(ctx context.Context, id int, input UpdateMemberInput) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, ErrMemberNameRequired
		}
		member.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		member.Phone = input.Phone
	}
	if input.Active != nil {
		member.Active = *input.Active
	}

	if err := s.memberRepo.Update(ctx, member); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMemberNotFound):
			return nil, ErrMemberNotFound
		case errors.Is(err, repositories.ErrMemberPhoneConflict):
			return nil, ErrMemberPhoneConflict
		}
		return nil, err
	}
	s.populateAvatarURL(member)
	return member, nil
}

func (s *memberService) DeleteMember(ctx context.Context, id int) error {
	err := s.memberRepo.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMemberNotFound):
		return ErrMemberNotFound
	case errors.Is(err, repositories.ErrMemberReferenced):
		return ErrMemberReferenced
	default:
		return err
	}
}

func avatarExtension(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAvatarInvalidType, contentType)
	}
}

func (s *memberService) UploadAvatar(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Member, error) {
	if s.uploader == nil {
		return nil, ErrAvatarStorageMissing
	}

	member, err := s.memberRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	ext, err := avatarExtension(contentType)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/member-%d-%d%s", member.ID, time.Now().UTC().Unix(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to upload avatar", slog.Int("member_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	oldKey := member.AvatarKey
	if err := s.memberRepo.UpdateAvatarKey(ctx, id, result.Key); err != nil {
		// БД не приняла новый ключ — подчищаем только что залитый объект.
		if delErr := s.uploader.Delete(ctx, result.Key); delErr != nil {
			s.logger.WarnContext(ctx, "Failed to clean up orphaned avatar", slog.String("key", result.Key), slog.Any("error", delErr))
		}
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	// Старый аватар больше не нужен; ошибка удаления не фатальна.
	if oldKey != nil && *oldKey != "" && *oldKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.WarnContext(ctx, "Failed to delete previous avatar", slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	member.AvatarKey = &result.Key
	s.populateAvatarURL(member)
	return member, nil
}
