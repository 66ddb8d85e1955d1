package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caulonghn/club-manager/ledger"
	"github.com/caulonghn/club-manager/models"
	"github.com/caulonghn/club-manager/repositories"
	"golang.org/x/sync/errgroup"
)

type CreatePersonalEventInput struct {
	Title       string    `json:"title" validate:"required"`
	Description *string   `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
	Location    *string   `json:"location"`
	TotalCost   int64     `json:"total_cost" validate:"gte=0"`

	ParticipantIDs []int              `json:"participant_ids" validate:"dive,gt=0"`
	PrePaid        map[int]PrePayment `json:"pre_paid"`
	// Для событий CustomAmount — полная сумма долга участника.
	CustomAmounts map[int]int64 `json:"custom_amounts"`
}

type UpdatePersonalEventInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	Location    *string    `json:"location"`
	TotalCost   *int64     `json:"total_cost" validate:"omitempty,gte=0"`

	ParticipantIDs *[]int             `json:"participant_ids"`
	PrePaid        map[int]PrePayment `json:"pre_paid"`
	CustomAmounts  map[int]int64      `json:"custom_amounts"`
}

// PersonalEventView — событие с участниками и сводкой по оплатам.
type PersonalEventView struct {
	Event  *models.PersonalEvent `json:"event"`
	Totals ledger.Totals         `json:"totals"`
}

type PersonalEventService interface {
	CreateEvent(ctx context.Context, input CreatePersonalEventInput) (*PersonalEventView, error)
	GetEventByID(ctx context.Context, id int) (*PersonalEventView, error)
	ListEvents(ctx context.Context, limit, offset int) ([]*models.PersonalEvent, error)
	UpdateEvent(ctx context.Context, id int, input UpdatePersonalEventInput) (*PersonalEventView, error)
	DeleteEvent(ctx context.Context, id int) error
	SetParticipantPayment(ctx context.Context, eventID, participantID int, hasPaid bool) (*models.PersonalEventParticipant, error)
}

type personalEventService struct {
	db              TxBeginner
	eventRepo       repositories.PersonalEventRepository
	participantRepo repositories.PersonalEventParticipantRepository
	hub             Broadcaster
	logger          *slog.Logger
}

func NewPersonalEventService(
	db TxBeginner,
	eventRepo repositories.PersonalEventRepository,
	participantRepo repositories.PersonalEventParticipantRepository,
	hub Broadcaster,
	logger *slog.Logger,
) PersonalEventService {
	return &personalEventService{
		db:              db,
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		hub:             hub,
		logger:          logger,
	}
}

func eventParticipantState(p *models.PersonalEventParticipant) ledger.ParticipantState {
	return ledger.ParticipantState{
		HasPaid:         p.HasPaid,
		PaidAt:          p.PaidAt,
		PrePaid:         p.PrePaid,
		PrePaidCategory: p.PrePaidCategory,
		CustomAmount:    p.CustomAmount,
	}
}

func applyEventParticipantState(p *models.PersonalEventParticipant, state ledger.ParticipantState) {
	p.HasPaid = state.HasPaid
	p.PaidAt = state.PaidAt
	p.PrePaid = state.PrePaid
	p.PrePaidCategory = state.PrePaidCategory
	p.CustomAmount = state.CustomAmount
}

func decorateEvent(event *models.PersonalEvent) ledger.Totals {
	entries := make([]ledger.Entry, 0, len(event.Participants))
	for i := range event.Participants {
		p := &event.Participants[i]
		p.Owed = ledger.EventOwed(p.CustomAmount, p.PrePaid)
		entries = append(entries, ledger.Entry{Owed: p.Owed, PrePaid: p.PrePaid, HasPaid: p.HasPaid})
	}
	return ledger.Aggregate(entries)
}

func (s *personalEventService) CreateEvent(ctx context.Context, input CreatePersonalEventInput) (view *PersonalEventView, txErr error) {
	if input.Title == "" {
		return nil, ErrEventTitleRequired
	}
	requestedIDs := dedupIDs(input.ParticipantIDs)
	if err := validateParticipantPayments(requestedIDs, input.PrePaid, input.CustomAmounts); err != nil {
		return nil, err
	}

	event := &models.PersonalEvent{
		Title:       input.Title,
		Description: input.Description,
		Date:        input.Date,
		Location:    input.Location,
		TotalCost:   input.TotalCost,
	}

	tx, txCtx, cancel, err := beginReconcileTx(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			view = nil
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
			}
		} else if cErr := tx.Commit(); cErr != nil {
			view = nil
			txErr = fmt.Errorf("failed to commit event creation: %w", cErr)
		}
	}()

	query := `
		INSERT INTO personal_events (title, description, date, location, total_cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	txErr = tx.QueryRowContext(txCtx, query,
		event.Title, event.Description, event.Date, event.Location, event.TotalCost,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if txErr != nil {
		txErr = mapTxError(fmt.Errorf("failed to create personal event: %w", txErr))
		return nil, txErr
	}

	rows := make([]*models.PersonalEventParticipant, 0, len(requestedIDs))
	for _, memberID := range requestedIDs {
		state := ledger.MergeParticipant(participantPatch(memberID, input.PrePaid, input.CustomAmounts), nil)
		p := &models.PersonalEventParticipant{EventID: event.ID, MemberID: memberID}
		applyEventParticipantState(p, state)
		rows = append(rows, p)
	}
	if txErr = s.participantRepo.CreateBatch(txCtx, tx, rows); txErr != nil {
		if errors.Is(txErr, repositories.ErrEventParticipantMemberInvalid) {
			txErr = ErrMemberNotFound
		}
		txErr = mapTxError(txErr)
		return nil, txErr
	}

	view, loadErr := s.loadEventView(txCtx, tx, event.ID)
	if loadErr != nil {
		txErr = mapTxError(loadErr)
		return nil, txErr
	}
	return view, nil
}

func (s *personalEventService) loadEventView(ctx context.Context, exec repositories.SQLExecutor, eventID int) (*PersonalEventView, error) {
	event, err := s.eventRepo.GetByID(ctx, exec, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrPersonalEventNotFound) {
			return nil, ErrPersonalEventNotFound
		}
		return nil, err
	}
	participants, err := s.participantRepo.ListByEvent(ctx, exec, eventID, true)
	if err != nil {
		return nil, err
	}
	event.Participants = make([]models.PersonalEventParticipant, 0, len(participants))
	for _, p := range participants {
		event.Participants = append(event.Participants, *p)
	}
	totals := decorateEvent(event)
	return &PersonalEventView{Event: event, Totals: totals}, nil
}

func (s *personalEventService) GetEventByID(ctx context.Context, id int) (*PersonalEventView, error) {
	return s.loadEventView(ctx, nil, id)
}

func (s *personalEventService) ListEvents(ctx context.Context, limit, offset int) ([]*models.PersonalEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.eventRepo.List(ctx, limit, offset)
}

// UpdateEvent — та же сверка состава, что и для игр, только без делёжки
// поровну: долг каждого участника задаётся его CustomAmount.
func (s *personalEventService) UpdateEvent(ctx context.Context, id int, input UpdatePersonalEventInput) (view *PersonalEventView, txErr error) {
	if input.ParticipantIDs != nil {
		if err := validateParticipantPayments(dedupIDs(*input.ParticipantIDs), input.PrePaid, input.CustomAmounts); err != nil {
			return nil, err
		}
	} else if err := validatePaymentAmounts(input.PrePaid, input.CustomAmounts); err != nil {
		// Без присланного состава суммы проверяются сразу, принадлежность
		// текущему составу — внутри транзакции.
		return nil, err
	}
	if input.Title != nil && *input.Title == "" {
		return nil, ErrEventTitleRequired
	}

	tx, txCtx, cancel, err := beginReconcileTx(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer cancel()

	defer func() {
		if txErr == nil && view != nil && s.hub != nil {
			s.hub.Broadcast(EventEventUpdated, view)
		}
	}()

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			view = nil
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
			}
		} else if cErr := tx.Commit(); cErr != nil {
			view = nil
			txErr = fmt.Errorf("failed to commit event reconciliation: %w", cErr)
		}
	}()

	event, txErr := s.eventRepo.GetByID(txCtx, tx, id)
	if txErr != nil {
		if errors.Is(txErr, repositories.ErrPersonalEventNotFound) {
			txErr = ErrPersonalEventNotFound
		}
		txErr = mapTxError(txErr)
		return nil, txErr
	}

	existing, listErr := s.participantRepo.ListByEvent(txCtx, tx, id, false)
	if listErr != nil {
		txErr = mapTxError(listErr)
		return nil, txErr
	}

	existingIDs := make([]int, 0, len(existing))
	existingByMember := make(map[int]*models.PersonalEventParticipant, len(existing))
	for _, p := range existing {
		existingIDs = append(existingIDs, p.MemberID)
		existingByMember[p.MemberID] = p
	}

	requestedIDs := existingIDs
	if input.ParticipantIDs != nil {
		requestedIDs = dedupIDs(*input.ParticipantIDs)
	} else if txErr = validatePaymentRoster(requestedIDs, input.PrePaid, input.CustomAmounts); txErr != nil {
		return nil, txErr
	}

	if input.Title != nil {
		event.Title = *input.Title
	}
	if input.Description != nil {
		event.Description = input.Description
	}
	if input.Date != nil {
		event.Date = *input.Date
	}
	if input.Location != nil {
		event.Location = input.Location
	}
	if input.TotalCost != nil {
		event.TotalCost = *input.TotalCost
	}

	if txErr = s.eventRepo.Update(txCtx, tx, event); txErr != nil {
		txErr = mapTxError(txErr)
		return nil, txErr
	}

	if ledger.MembershipChanged(existingIDs, requestedIDs) {
		txErr = s.recreateParticipants(txCtx, tx, event.ID, requestedIDs, existingByMember, input)
	} else {
		txErr = s.patchParticipants(txCtx, tx, requestedIDs, existingByMember, input)
	}
	if txErr != nil {
		txErr = mapTxError(txErr)
		return nil, txErr
	}

	view, loadErr := s.loadEventView(txCtx, tx, event.ID)
	if loadErr != nil {
		txErr = mapTxError(loadErr)
		return nil, txErr
	}
	return view, nil
}

func (s *personalEventService) recreateParticipants(
	ctx context.Context,
	exec repositories.SQLExecutor,
	eventID int,
	requestedIDs []int,
	existingByMember map[int]*models.PersonalEventParticipant,
	input UpdatePersonalEventInput,
) error {
	if err := s.participantRepo.DeleteByEvent(ctx, exec, eventID); err != nil {
		return err
	}

	rows := make([]*models.PersonalEventParticipant, 0, len(requestedIDs))
	for _, memberID := range requestedIDs {
		var prior *ledger.ParticipantState
		if existing, ok := existingByMember[memberID]; ok {
			state := eventParticipantState(existing)
			prior = &state
		}
		state := ledger.MergeParticipant(participantPatch(memberID, input.PrePaid, input.CustomAmounts), prior)
		p := &models.PersonalEventParticipant{EventID: eventID, MemberID: memberID}
		applyEventParticipantState(p, state)
		rows = append(rows, p)
	}

	if err := s.participantRepo.CreateBatch(ctx, exec, rows); err != nil {
		if errors.Is(err, repositories.ErrEventParticipantMemberInvalid) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}

func (s *personalEventService) patchParticipants(
	ctx context.Context,
	exec repositories.SQLExecutor,
	requestedIDs []int,
	existingByMember map[int]*models.PersonalEventParticipant,
	input UpdatePersonalEventInput,
) error {
	updates := make([]*models.PersonalEventParticipant, 0, len(requestedIDs))
	for _, memberID := range requestedIDs {
		existing, ok := existingByMember[memberID]
		if !ok {
			return fmt.Errorf("%w: member %d", ErrParticipantNotFound, memberID)
		}
		current := eventParticipantState(existing)
		merged := ledger.MergeParticipant(participantPatch(memberID, input.PrePaid, input.CustomAmounts), &current)
		if merged.Equal(current) {
			continue
		}
		updated := *existing
		applyEventParticipantState(&updated, merged)
		updates = append(updates, &updated)
	}

	for _, batch := range chunk(updates, participantChunkSize) {
		g, gCtx := errgroup.WithContext(ctx)
		for _, p := range batch {
			p := p
			g.Go(func() error {
				return s.participantRepo.UpdateFields(gCtx, exec, p)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (s *personalEventService) DeleteEvent(ctx context.Context, id int) error {
	err := s.eventRepo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrPersonalEventNotFound) {
		return ErrPersonalEventNotFound
	}
	return err
}

func (s *personalEventService) SetParticipantPayment(ctx context.Context, eventID, participantID int, hasPaid bool) (*models.PersonalEventParticipant, error) {
	p, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	if p.EventID != eventID {
		return nil, ErrParticipantNotFound
	}

	if p.HasPaid != hasPaid {
		var paidAt *time.Time
		if hasPaid {
			now := time.Now().UTC()
			paidAt = &now
		}
		if err := s.participantRepo.UpdatePayment(ctx, participantID, hasPaid, paidAt); err != nil {
			if errors.Is(err, repositories.ErrEventParticipantNotFound) {
				return nil, ErrParticipantNotFound
			}
			return nil, err
		}
		p.HasPaid = hasPaid
		p.PaidAt = paidAt
	}

	p.Owed = ledger.EventOwed(p.CustomAmount, p.PrePaid)
	if s.hub != nil {
		s.hub.Broadcast(EventPaymentUpdated, p)
	}
	return p, nil
}
