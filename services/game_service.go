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

// Broadcaster рассылает событие подключённым live-клиентам (см. пакет live).
// Допускается nil — тогда уведомления просто не рассылаются.
type Broadcaster interface {
	Broadcast(eventType string, payload interface{})
}

// Типы live-событий.
const (
	EventGameUpdated    = "GAME_UPDATED"
	EventPaymentUpdated = "PAYMENT_UPDATED"
	EventEventUpdated   = "EVENT_UPDATED"
)

// PrePayment — предоплата участника с необязательной категорией
// ("court", "shuttlecocks", "water" и т.п. — свободный текст).
type PrePayment struct {
	Amount   int64  `json:"amount" validate:"gte=0"`
	Category string `json:"category"`
}

type CreateGameInput struct {
	Date                time.Time `json:"date" validate:"required"`
	Location            *string   `json:"location"`
	YardCost            int64     `json:"yard_cost" validate:"gte=0"`
	ShuttleCockQuantity int       `json:"shuttle_cock_quantity" validate:"gte=0"`
	ShuttleCockPrice    int64     `json:"shuttle_cock_price" validate:"gte=0"`
	OtherFees           int64     `json:"other_fees" validate:"gte=0"`
	ParticipantIDs      []int     `json:"participant_ids" validate:"dive,gt=0"`

	// Ключ обеих map — id участника клуба из ParticipantIDs.
	PrePaid       map[int]PrePayment `json:"pre_paid"`
	CustomAmounts map[int]int64      `json:"custom_amounts"`
}

// UpdateGameInput — частичное обновление: nil-поле не трогает текущее значение.
// ParticipantIDs задаёт ПОЛНЫЙ желаемый состав; nil оставляет состав как есть.
type UpdateGameInput struct {
	Date                *time.Time `json:"date"`
	Location            *string    `json:"location"`
	YardCost            *int64     `json:"yard_cost" validate:"omitempty,gte=0"`
	ShuttleCockQuantity *int       `json:"shuttle_cock_quantity" validate:"omitempty,gte=0"`
	ShuttleCockPrice    *int64     `json:"shuttle_cock_price" validate:"omitempty,gte=0"`
	OtherFees           *int64     `json:"other_fees" validate:"omitempty,gte=0"`
	ParticipantIDs      *[]int     `json:"participant_ids"`

	PrePaid       map[int]PrePayment `json:"pre_paid"`
	CustomAmounts map[int]int64      `json:"custom_amounts"`
}

// GameView — игра с участниками и сводкой по оплатам.
type GameView struct {
	Game   *models.Game  `json:"game"`
	Totals ledger.Totals `json:"totals"`
}

type GameService interface {
	CreateGame(ctx context.Context, input CreateGameInput) (*GameView, error)
	GetGameByID(ctx context.Context, id int) (*GameView, error)
	ListGames(ctx context.Context, filter repositories.ListGamesFilter) ([]*models.Game, error)
	UpdateGame(ctx context.Context, id int, input UpdateGameInput) (*GameView, error)
	DeleteGame(ctx context.Context, id int) error
	SetParticipantPayment(ctx context.Context, gameID, participantID int, hasPaid bool) (*models.GameParticipant, error)
}

type gameService struct {
	db              TxBeginner
	gameRepo        repositories.GameRepository
	participantRepo repositories.GameParticipantRepository
	hub             Broadcaster
	logger          *slog.Logger
}

func NewGameService(
	db TxBeginner,
	gameRepo repositories.GameRepository,
	participantRepo repositories.GameParticipantRepository,
	hub Broadcaster,
	logger *slog.Logger,
) GameService {
	return &gameService{
		db:              db,
		gameRepo:        gameRepo,
		participantRepo: participantRepo,
		hub:             hub,
		logger:          logger,
	}
}

// validateParticipantPayments проверяет всю пачку платёжных полей ДО первой
// записи: суммы неотрицательны, ключи map ссылаются только на запрошенный
// состав. Ошибка любой записи отклоняет запрос целиком.
func validateParticipantPayments(requestedIDs []int, prePaid map[int]PrePayment, customAmounts map[int]int64) error {
	if err := validatePaymentAmounts(prePaid, customAmounts); err != nil {
		return err
	}
	return validatePaymentRoster(requestedIDs, prePaid, customAmounts)
}

// validatePaymentAmounts отклоняет отрицательные суммы. Не требует знания
// состава, поэтому выполняется до открытия транзакции.
func validatePaymentAmounts(prePaid map[int]PrePayment, customAmounts map[int]int64) error {
	for memberID, pp := range prePaid {
		if pp.Amount < 0 {
			return fmt.Errorf("%w: pre_paid for member %d", ErrNegativeAmount, memberID)
		}
	}
	for memberID, amount := range customAmounts {
		if amount < 0 {
			return fmt.Errorf("%w: custom_amount for member %d", ErrNegativeAmount, memberID)
		}
	}
	return nil
}

// validatePaymentRoster сверяет ключи платёжных map с действующим составом:
// платёж для участника вне состава отклоняет запрос целиком, а не тихо
// игнорируется.
func validatePaymentRoster(requestedIDs []int, prePaid map[int]PrePayment, customAmounts map[int]int64) error {
	requested := make(map[int]struct{}, len(requestedIDs))
	for _, id := range requestedIDs {
		if id <= 0 {
			return fmt.Errorf("%w: %d", ErrParticipantMemberInvalid, id)
		}
		requested[id] = struct{}{}
	}
	for memberID := range prePaid {
		if _, ok := requested[memberID]; !ok {
			return fmt.Errorf("%w: pre_paid for member %d", ErrParticipantUnknownMember, memberID)
		}
	}
	for memberID := range customAmounts {
		if _, ok := requested[memberID]; !ok {
			return fmt.Errorf("%w: custom_amount for member %d", ErrParticipantUnknownMember, memberID)
		}
	}
	return nil
}

// participantPatch собирает частичное обновление участника из map запроса.
func participantPatch(memberID int, prePaid map[int]PrePayment, customAmounts map[int]int64) ledger.ParticipantPatch {
	var patch ledger.ParticipantPatch
	if pp, ok := prePaid[memberID]; ok {
		amount := pp.Amount
		category := pp.Category
		patch.PrePaid = &amount
		patch.PrePaidCategory = &category
	}
	if amount, ok := customAmounts[memberID]; ok {
		value := amount
		patch.CustomAmount = &value
	}
	return patch
}

func gameParticipantState(p *models.GameParticipant) ledger.ParticipantState {
	return ledger.ParticipantState{
		HasPaid:         p.HasPaid,
		PaidAt:          p.PaidAt,
		PrePaid:         p.PrePaid,
		PrePaidCategory: p.PrePaidCategory,
		CustomAmount:    p.CustomAmount,
	}
}

func applyGameParticipantState(p *models.GameParticipant, state ledger.ParticipantState) {
	p.HasPaid = state.HasPaid
	p.PaidAt = state.PaidAt
	p.PrePaid = state.PrePaid
	p.PrePaidCategory = state.PrePaidCategory
	p.CustomAmount = state.CustomAmount
}

// decorateGame заполняет производные поля Owed и считает сводку.
func decorateGame(game *models.Game) ledger.Totals {
	entries := make([]ledger.Entry, 0, len(game.Participants))
	for i := range game.Participants {
		p := &game.Participants[i]
		p.Owed = ledger.GameOwed(game.CostPerMember, p.CustomAmount, p.PrePaid)
		entries = append(entries, ledger.Entry{Owed: p.Owed, PrePaid: p.PrePaid, HasPaid: p.HasPaid})
	}
	return ledger.Aggregate(entries)
}

func (s *gameService) CreateGame(ctx context.Context, input CreateGameInput) (view *GameView, txErr error) {
	requestedIDs := dedupIDs(input.ParticipantIDs)
	if err := validateParticipantPayments(requestedIDs, input.PrePaid, input.CustomAmounts); err != nil {
		return nil, err
	}

	game := &models.Game{
		Date:                input.Date,
		Location:            input.Location,
		YardCost:            input.YardCost,
		ShuttleCockQuantity: input.ShuttleCockQuantity,
		ShuttleCockPrice:    input.ShuttleCockPrice,
		OtherFees:           input.OtherFees,
	}
	game.TotalCost = ledger.GameTotal(game.YardCost, game.ShuttleCockQuantity, game.ShuttleCockPrice, game.OtherFees)
	game.CostPerMember = ledger.SplitPerMember(game.TotalCost, len(requestedIDs))

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
			txErr = fmt.Errorf("failed to commit game creation: %w", cErr)
		}
	}()

	query := `
		INSERT INTO games
			(date, location, yard_cost, shuttle_cock_quantity, shuttle_cock_price,
			 other_fees, total_cost, cost_per_member)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	txErr = tx.QueryRowContext(txCtx, query,
		game.Date, game.Location, game.YardCost, game.ShuttleCockQuantity,
		game.ShuttleCockPrice, game.OtherFees, game.TotalCost, game.CostPerMember,
	).Scan(&game.ID, &game.CreatedAt)
	if txErr != nil {
		txErr = mapTxError(fmt.Errorf("failed to create game: %w", txErr))
		return nil, txErr
	}

	rows := make([]*models.GameParticipant, 0, len(requestedIDs))
	for _, memberID := range requestedIDs {
		state := ledger.MergeParticipant(participantPatch(memberID, input.PrePaid, input.CustomAmounts), nil)
		p := &models.GameParticipant{GameID: game.ID, MemberID: memberID}
		applyGameParticipantState(p, state)
		rows = append(rows, p)
	}
	if txErr = s.participantRepo.CreateBatch(txCtx, tx, rows); txErr != nil {
		if errors.Is(txErr, repositories.ErrGameParticipantMemberInvalid) {
			txErr = ErrMemberNotFound
		}
		txErr = mapTxError(txErr)
		return nil, txErr
	}

	view, loadErr := s.loadGameView(txCtx, tx, game.ID)
	if loadErr != nil {
		txErr = mapTxError(loadErr)
		return nil, txErr
	}
	return view, txErr
}

func (s *gameService) loadGameView(ctx context.Context, exec repositories.SQLExecutor, gameID int) (*GameView, error) {
	game, err := s.gameRepo.GetByID(ctx, exec, gameID)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	participants, err := s.participantRepo.ListByGame(ctx, exec, gameID, true)
	if err != nil {
		return nil, err
	}
	game.Participants = make([]models.GameParticipant, 0, len(participants))
	for _, p := range participants {
		game.Participants = append(game.Participants, *p)
	}
	totals := decorateGame(game)
	return &GameView{Game: game, Totals: totals}, nil
}

func (s *gameService) GetGameByID(ctx context.Context, id int) (*GameView, error) {
	return s.loadGameView(ctx, nil, id)
}

func (s *gameService) ListGames(ctx context.Context, filter repositories.ListGamesFilter) ([]*models.Game, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.gameRepo.List(ctx, filter)
}

// UpdateGame сверяет поля игры и состав участников за одну транзакцию.
// Любая ошибка откатывает всё: частично применённых обновлений не бывает.
func (s *gameService) UpdateGame(ctx context.Context, id int, input UpdateGameInput) (view *GameView, txErr error) {
	if input.ParticipantIDs != nil {
		if err := validateParticipantPayments(dedupIDs(*input.ParticipantIDs), input.PrePaid, input.CustomAmounts); err != nil {
			return nil, err
		}
	} else if err := validatePaymentAmounts(input.PrePaid, input.CustomAmounts); err != nil {
		// Состав не прислан — суммы проверяются сразу, принадлежность
		// текущему составу сверяется внутри транзакции.
		return nil, err
	}

	tx, txCtx, cancel, err := beginReconcileTx(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// Регистрируется до commit-замыкания, поэтому выполнится после него —
	// уведомление уходит только по факту успешного коммита.
	defer func() {
		if txErr == nil && view != nil && s.hub != nil {
			s.hub.Broadcast(EventGameUpdated, view)
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
			txErr = fmt.Errorf("failed to commit game reconciliation: %w", cErr)
		}
	}()

	game, txErr := s.gameRepo.GetByID(txCtx, tx, id)
	if txErr != nil {
		if errors.Is(txErr, repositories.ErrGameNotFound) {
			txErr = ErrGameNotFound
		}
		txErr = mapTxError(txErr)
		return nil, txErr
	}

	existing, listErr := s.participantRepo.ListByGame(txCtx, tx, id, false)
	if listErr != nil {
		txErr = mapTxError(listErr)
		return nil, txErr
	}

	existingIDs := make([]int, 0, len(existing))
	existingByMember := make(map[int]*models.GameParticipant, len(existing))
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

	// Скалярные поля игры: запрошенное значение или текущее.
	if input.Date != nil {
		game.Date = *input.Date
	}
	if input.Location != nil {
		game.Location = input.Location
	}
	if input.YardCost != nil {
		game.YardCost = *input.YardCost
	}
	if input.ShuttleCockQuantity != nil {
		game.ShuttleCockQuantity = *input.ShuttleCockQuantity
	}
	if input.ShuttleCockPrice != nil {
		game.ShuttleCockPrice = *input.ShuttleCockPrice
	}
	if input.OtherFees != nil {
		game.OtherFees = *input.OtherFees
	}
	game.TotalCost = ledger.GameTotal(game.YardCost, game.ShuttleCockQuantity, game.ShuttleCockPrice, game.OtherFees)
	game.CostPerMember = ledger.SplitPerMember(game.TotalCost, len(requestedIDs))

	if txErr = s.gameRepo.Update(txCtx, tx, game); txErr != nil {
		txErr = mapTxError(txErr)
		return nil, txErr
	}

	if ledger.MembershipChanged(existingIDs, requestedIDs) {
		txErr = s.recreateParticipants(txCtx, tx, game.ID, requestedIDs, existingByMember, input)
	} else {
		txErr = s.patchParticipants(txCtx, tx, requestedIDs, existingByMember, input)
	}
	if txErr != nil {
		txErr = mapTxError(txErr)
		return nil, txErr
	}

	view, loadErr := s.loadGameView(txCtx, tx, game.ID)
	if loadErr != nil {
		txErr = mapTxError(loadErr)
		return nil, txErr
	}
	return view, nil
}

// recreateParticipants — путь CHANGED_MEMBERSHIP: полная замена строк.
// Для участника, остающегося в составе, незапрошенные поля наследуются из его
// прежней строки — платёжная история переживает пересоздание.
func (s *gameService) recreateParticipants(
	ctx context.Context,
	exec repositories.SQLExecutor,
	gameID int,
	requestedIDs []int,
	existingByMember map[int]*models.GameParticipant,
	input UpdateGameInput,
) error {
	if err := s.participantRepo.DeleteByGame(ctx, exec, gameID); err != nil {
		return err
	}

	rows := make([]*models.GameParticipant, 0, len(requestedIDs))
	for _, memberID := range requestedIDs {
		var prior *ledger.ParticipantState
		if existing, ok := existingByMember[memberID]; ok {
			state := gameParticipantState(existing)
			prior = &state
		}
		state := ledger.MergeParticipant(participantPatch(memberID, input.PrePaid, input.CustomAmounts), prior)
		p := &models.GameParticipant{GameID: gameID, MemberID: memberID}
		applyGameParticipantState(p, state)
		rows = append(rows, p)
	}

	if err := s.participantRepo.CreateBatch(ctx, exec, rows); err != nil {
		if errors.Is(err, repositories.ErrGameParticipantMemberInvalid) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}

// patchParticipants — путь UNCHANGED_MEMBERSHIP: точечные апдейты только тех
// строк, чьи поля реально изменились. Апдейты идут пачками по
// participantChunkSize; пачка выполняется конкурентно, следующая стартует
// после завершения предыдущей. database/sql сериализует доступ к соединению
// транзакции, так что это ограничение темпа, а не гонка.
func (s *gameService) patchParticipants(
	ctx context.Context,
	exec repositories.SQLExecutor,
	requestedIDs []int,
	existingByMember map[int]*models.GameParticipant,
	input UpdateGameInput,
) error {
	updates := make([]*models.GameParticipant, 0, len(requestedIDs))
	for _, memberID := range requestedIDs {
		existing, ok := existingByMember[memberID]
		if !ok {
			// Состав не менялся, значит участник обязан быть в map.
			return fmt.Errorf("%w: member %d", ErrParticipantNotFound, memberID)
		}
		current := gameParticipantState(existing)
		merged := ledger.MergeParticipant(participantPatch(memberID, input.PrePaid, input.CustomAmounts), &current)
		if merged.Equal(current) {
			continue // Поля не изменились — запись пропускается целиком.
		}
		updated := *existing
		applyGameParticipantState(&updated, merged)
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

func (s *gameService) DeleteGame(ctx context.Context, id int) error {
	err := s.gameRepo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrGameNotFound) {
		return ErrGameNotFound
	}
	return err
}

// SetParticipantPayment переключает отметку об оплате. PaidAt выставляется
// ровно в момент перехода false->true и сбрасывается при обратном переходе.
func (s *gameService) SetParticipantPayment(ctx context.Context, gameID, participantID int, hasPaid bool) (*models.GameParticipant, error) {
	p, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrGameParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	if p.GameID != gameID {
		return nil, ErrParticipantNotFound
	}

	if p.HasPaid != hasPaid {
		var paidAt *time.Time
		if hasPaid {
			now := time.Now().UTC()
			paidAt = &now
		}
		if err := s.participantRepo.UpdatePayment(ctx, participantID, hasPaid, paidAt); err != nil {
			if errors.Is(err, repositories.ErrGameParticipantNotFound) {
				return nil, ErrParticipantNotFound
			}
			return nil, err
		}
		p.HasPaid = hasPaid
		p.PaidAt = paidAt
	}

	game, err := s.gameRepo.GetByID(ctx, nil, p.GameID)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to load game for owed amount: %w", err)
	}
	p.Owed = ledger.GameOwed(game.CostPerMember, p.CustomAmount, p.PrePaid)

	if s.hub != nil {
		s.hub.Broadcast(EventPaymentUpdated, p)
	}
	return p, nil
}
