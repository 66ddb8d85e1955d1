package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/caulonghn/club-manager/ledger"
	"github.com/caulonghn/club-manager/models"
	"github.com/caulonghn/club-manager/payment"
	"github.com/caulonghn/club-manager/repositories"
)

// MemberBalance — сводка долгов участника по всем играм и событиям.
// QRURL заполняется только при ненулевом положительном долге.
type MemberBalance struct {
	Member       *models.Member                     `json:"member"`
	UnpaidGames  []*models.GameParticipant          `json:"unpaid_games"`
	UnpaidEvents []*models.PersonalEventParticipant `json:"unpaid_events"`
	Total        int64                              `json:"total"`
	QRURL        string                             `json:"qr_url,omitempty"`
}

type BalanceService interface {
	GetMemberBalance(ctx context.Context, memberID int) (*MemberBalance, error)
}

type balanceService struct {
	memberRepo           repositories.MemberRepository
	gameParticipantRepo  repositories.GameParticipantRepository
	eventParticipantRepo repositories.PersonalEventParticipantRepository
	qr                   payment.QRConfig
}

func NewBalanceService(
	memberRepo repositories.MemberRepository,
	gameParticipantRepo repositories.GameParticipantRepository,
	eventParticipantRepo repositories.PersonalEventParticipantRepository,
	qr payment.QRConfig,
) BalanceService {
	return &balanceService{
		memberRepo:           memberRepo,
		gameParticipantRepo:  gameParticipantRepo,
		eventParticipantRepo: eventParticipantRepo,
		qr:                   qr,
	}
}

func (s *balanceService) GetMemberBalance(ctx context.Context, memberID int) (*MemberBalance, error) {
	member, err := s.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	unpaidGames, err := s.gameParticipantRepo.ListUnpaidByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid games: %w", err)
	}
	unpaidEvents, err := s.eventParticipantRepo.ListUnpaidByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid events: %w", err)
	}

	gameOwed := make([]int64, 0, len(unpaidGames))
	for _, p := range unpaidGames {
		var costPerMember int64
		if p.Game != nil {
			costPerMember = p.Game.CostPerMember
		}
		p.Owed = ledger.GameOwed(costPerMember, p.CustomAmount, p.PrePaid)
		gameOwed = append(gameOwed, p.Owed)
	}

	eventOwed := make([]int64, 0, len(unpaidEvents))
	for _, p := range unpaidEvents {
		p.Owed = ledger.EventOwed(p.CustomAmount, p.PrePaid)
		eventOwed = append(eventOwed, p.Owed)
	}

	balance := &MemberBalance{
		Member:       member,
		UnpaidGames:  unpaidGames,
		UnpaidEvents: unpaidEvents,
		Total:        ledger.MemberOutstanding(gameOwed, eventOwed),
	}

	if balance.Total > 0 && s.qr.Configured() {
		balance.QRURL = s.qr.Link(balance.Total, fmt.Sprintf("CLB cau long %s", member.Name))
	}

	return balance, nil
}
