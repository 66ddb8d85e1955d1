package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/caulonghn/club-manager/models"
	"github.com/caulonghn/club-manager/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGameRepo struct {
	GetByIDFunc func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error)
	ListFunc    func(ctx context.Context, filter repositories.ListGamesFilter) ([]*models.Game, error)
	UpdateFunc  func(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error
	DeleteFunc  func(ctx context.Context, id int) error
}

func (f *fakeGameRepo) Create(ctx context.Context, game *models.Game) error {
	return errors.New("unexpected Create call")
}

func (f *fakeGameRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
	return f.GetByIDFunc(ctx, exec, id)
}

func (f *fakeGameRepo) List(ctx context.Context, filter repositories.ListGamesFilter) ([]*models.Game, error) {
	return f.ListFunc(ctx, filter)
}

func (f *fakeGameRepo) Update(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error {
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, exec, game)
	}
	return nil
}

func (f *fakeGameRepo) Delete(ctx context.Context, id int) error {
	return f.DeleteFunc(ctx, id)
}

type fakeGameParticipantRepo struct {
	mu sync.Mutex

	ListByGameFunc         func(ctx context.Context, exec repositories.SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error)
	FindByIDFunc           func(ctx context.Context, id int) (*models.GameParticipant, error)
	UpdatePaymentFunc      func(ctx context.Context, id int, hasPaid bool, paidAt *time.Time) error
	ListUnpaidByMemberFunc func(ctx context.Context, memberID int) ([]*models.GameParticipant, error)

	createBatchErr error
	updateFieldErr error

	created      []*models.GameParticipant
	updated      []*models.GameParticipant
	deletedGames []int
}

func (f *fakeGameParticipantRepo) ListByGame(ctx context.Context, exec repositories.SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error) {
	return f.ListByGameFunc(ctx, exec, gameID, includeMember)
}

func (f *fakeGameParticipantRepo) FindByID(ctx context.Context, id int) (*models.GameParticipant, error) {
	return f.FindByIDFunc(ctx, id)
}

func (f *fakeGameParticipantRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, participants []*models.GameParticipant) error {
	if f.createBatchErr != nil {
		return f.createBatchErr
	}
	f.mu.Lock()
	f.created = append(f.created, participants...)
	f.mu.Unlock()
	return nil
}

func (f *fakeGameParticipantRepo) DeleteByGame(ctx context.Context, exec repositories.SQLExecutor, gameID int) error {
	f.mu.Lock()
	f.deletedGames = append(f.deletedGames, gameID)
	f.mu.Unlock()
	return nil
}

func (f *fakeGameParticipantRepo) UpdateFields(ctx context.Context, exec repositories.SQLExecutor, p *models.GameParticipant) error {
	if f.updateFieldErr != nil {
		return f.updateFieldErr
	}
	f.mu.Lock()
	f.updated = append(f.updated, p)
	f.mu.Unlock()
	return nil
}

func (f *fakeGameParticipantRepo) UpdatePayment(ctx context.Context, id int, hasPaid bool, paidAt *time.Time) error {
	return f.UpdatePaymentFunc(ctx, id, hasPaid, paidAt)
}

func (f *fakeGameParticipantRepo) ListUnpaidByMember(ctx context.Context, memberID int) ([]*models.GameParticipant, error) {
	return f.ListUnpaidByMemberFunc(ctx, memberID)
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeBroadcaster) Broadcast(eventType string, payload interface{}) {
	f.mu.Lock()
	f.events = append(f.events, eventType)
	f.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gameFixture(id int, costPerMember int64) *models.Game {
	return &models.Game{
		ID:                  id,
		Date:                time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC),
		YardCost:            160000,
		ShuttleCockQuantity: 2,
		ShuttleCockPrice:    25000,
		OtherFees:           6000,
		TotalCost:           216000,
		CostPerMember:       costPerMember,
	}
}

func existingParticipants(gameID int, memberIDs ...int) []*models.GameParticipant {
	out := make([]*models.GameParticipant, 0, len(memberIDs))
	for i, memberID := range memberIDs {
		out = append(out, &models.GameParticipant{
			ID:       100 + i,
			GameID:   gameID,
			MemberID: memberID,
		})
	}
	return out
}

func TestUpdateGameSkipsUnchangedParticipants(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	existing := existingParticipants(7, 1, 2, 3)
	existing[1].PrePaid = 50000
	existing[1].PrePaidCategory = "court"

	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return gameFixture(7, 44000), nil
		},
	}
	participantRepo := &fakeGameParticipantRepo{
		ListByGameFunc: func(ctx context.Context, exec repositories.SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error) {
			return existing, nil
		},
	}
	hub := &fakeBroadcaster{}
	svc := NewGameService(db, gameRepo, participantRepo, hub, testLogger())

	// Состав тот же, меняется только предоплата участника 1. Запись участника 2
	// уже хранит ровно те же значения, участника 3 никто не трогал.
	ids := []int{1, 2, 3}
	view, err := svc.UpdateGame(context.Background(), 7, UpdateGameInput{
		ParticipantIDs: &ids,
		PrePaid: map[int]PrePayment{
			1: {Amount: 20000, Category: "shuttlecocks"},
			2: {Amount: 50000, Category: "court"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, view)

	require.Len(t, participantRepo.updated, 1)
	assert.Equal(t, 1, participantRepo.updated[0].MemberID)
	assert.Equal(t, int64(20000), participantRepo.updated[0].PrePaid)
	assert.Empty(t, participantRepo.created)
	assert.Empty(t, participantRepo.deletedGames)

	assert.Equal(t, []string{EventGameUpdated}, hub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGameRecreatesOnMembershipChange(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	existing := existingParticipants(7, 1, 2)
	existing[0].HasPaid = true
	existing[0].PaidAt = &paidAt
	existing[0].PrePaid = 30000
	existing[0].PrePaidCategory = "water"

	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return gameFixture(7, 108000), nil
		},
	}
	participantRepo := &fakeGameParticipantRepo{
		ListByGameFunc: func(ctx context.Context, exec repositories.SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error) {
			return existing, nil
		},
	}
	svc := NewGameService(db, gameRepo, participantRepo, nil, testLogger())

	// Участник 2 уходит, участник 3 приходит: полный пересбор строк.
	ids := []int{1, 3}
	_, err = svc.UpdateGame(context.Background(), 7, UpdateGameInput{ParticipantIDs: &ids})
	require.NoError(t, err)

	assert.Equal(t, []int{7}, participantRepo.deletedGames)
	require.Len(t, participantRepo.created, 2)

	// Остающийся участник сохраняет платёжную историю.
	retained := participantRepo.created[0]
	assert.Equal(t, 1, retained.MemberID)
	assert.True(t, retained.HasPaid)
	require.NotNil(t, retained.PaidAt)
	assert.True(t, paidAt.Equal(*retained.PaidAt))
	assert.Equal(t, int64(30000), retained.PrePaid)
	assert.Equal(t, "water", retained.PrePaidCategory)

	// Новичок начинает с чистого платёжного состояния.
	added := participantRepo.created[1]
	assert.Equal(t, 3, added.MemberID)
	assert.False(t, added.HasPaid)
	assert.Zero(t, added.PrePaid)

	assert.Empty(t, participantRepo.updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGameRollsBackOnParticipantFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return gameFixture(7, 44000), nil
		},
	}
	boom := errors.New("connection reset")
	participantRepo := &fakeGameParticipantRepo{
		ListByGameFunc: func(ctx context.Context, exec repositories.SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error) {
			return existingParticipants(7, 1, 2), nil
		},
		updateFieldErr: boom,
	}
	hub := &fakeBroadcaster{}
	svc := NewGameService(db, gameRepo, participantRepo, hub, testLogger())

	ids := []int{1, 2}
	view, err := svc.UpdateGame(context.Background(), 7, UpdateGameInput{
		ParticipantIDs: &ids,
		PrePaid:        map[int]PrePayment{1: {Amount: 10000}},
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, view)
	assert.Empty(t, hub.events, "failed reconciliation must not be broadcast")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGameCommitErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("commit refused"))

	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return gameFixture(7, 44000), nil
		},
	}
	participantRepo := &fakeGameParticipantRepo{
		ListByGameFunc: func(ctx context.Context, exec repositories.SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error) {
			return existingParticipants(7, 1), nil
		},
	}
	hub := &fakeBroadcaster{}
	svc := NewGameService(db, gameRepo, participantRepo, hub, testLogger())

	view, err := svc.UpdateGame(context.Background(), 7, UpdateGameInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.Nil(t, view)
	assert.Empty(t, hub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGameNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return nil, repositories.ErrGameNotFound
		},
	}
	svc := NewGameService(db, gameRepo, &fakeGameParticipantRepo{}, nil, testLogger())

	_, err = svc.UpdateGame(context.Background(), 99, UpdateGameInput{})
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGameRejectsPaymentForUnknownMember(t *testing.T) {
	svc := NewGameService(nil, &fakeGameRepo{}, &fakeGameParticipantRepo{}, nil, testLogger())

	ids := []int{1, 2}
	_, err := svc.UpdateGame(context.Background(), 7, UpdateGameInput{
		ParticipantIDs: &ids,
		PrePaid:        map[int]PrePayment{5: {Amount: 1000}},
	})
	assert.ErrorIs(t, err, ErrParticipantUnknownMember)

	_, err = svc.UpdateGame(context.Background(), 7, UpdateGameInput{
		ParticipantIDs: &ids,
		CustomAmounts:  map[int]int64{1: -500},
	})
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestUpdateGameValidatesPaymentsWithoutRoster(t *testing.T) {
	// Отрицательная сумма отклоняется до открытия транзакции, даже когда
	// participant_ids не присланы вовсе.
	svc := NewGameService(nil, &fakeGameRepo{}, &fakeGameParticipantRepo{}, nil, testLogger())
	view, err := svc.UpdateGame(context.Background(), 7, UpdateGameInput{
		PrePaid: map[int]PrePayment{7: {Amount: -50000}},
	})
	assert.ErrorIs(t, err, ErrNegativeAmount)
	assert.Nil(t, view)

	// Платёж для участника вне текущего состава откатывает транзакцию целиком,
	// а не игнорируется молча.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return gameFixture(7, 44000), nil
		},
	}
	participantRepo := &fakeGameParticipantRepo{
		ListByGameFunc: func(ctx context.Context, exec repositories.SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error) {
			return existingParticipants(7, 1, 2), nil
		},
	}
	hub := &fakeBroadcaster{}
	svc = NewGameService(db, gameRepo, participantRepo, hub, testLogger())

	view, err = svc.UpdateGame(context.Background(), 7, UpdateGameInput{
		PrePaid: map[int]PrePayment{5: {Amount: 1000}},
	})
	assert.ErrorIs(t, err, ErrParticipantUnknownMember)
	assert.Nil(t, view)
	assert.Empty(t, participantRepo.updated)
	assert.Empty(t, participantRepo.created)
	assert.Empty(t, hub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateGameComputesCosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO games").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, time.Now()))
	mock.ExpectCommit()

	var storedGame *models.Game
	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return storedGame, nil
		},
	}
	participantRepo := &fakeGameParticipantRepo{}
	participantRepo.ListByGameFunc = func(ctx context.Context, exec repositories.SQLExecutor, gameID int, includeMember bool) ([]*models.GameParticipant, error) {
		return participantRepo.created, nil
	}
	svc := NewGameService(db, gameRepo, participantRepo, nil, testLogger())

	input := CreateGameInput{
		Date:                time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC),
		YardCost:            160000,
		ShuttleCockQuantity: 2,
		ShuttleCockPrice:    25000,
		OtherFees:           6000,
		ParticipantIDs:      []int{1, 2, 3, 4, 5},
		PrePaid:             map[int]PrePayment{2: {Amount: 25000, Category: "shuttlecocks"}},
	}
	// Подсовываем гейм, который "прочитает" loadGameView после INSERT.
	storedGame = &models.Game{
		ID:            42,
		TotalCost:     216000,
		CostPerMember: 44000,
	}

	view, err := svc.CreateGame(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, view)

	// 216000 / 5 = 43200, вверх до кратного 1000 -> 44000.
	require.Len(t, participantRepo.created, 5)
	assert.Equal(t, int64(25000), participantRepo.created[1].PrePaid)
	assert.Equal(t, "shuttlecocks", participantRepo.created[1].PrePaidCategory)

	// Сводка: 5 должников по 44000, у одного предоплата 25000.
	assert.Equal(t, int64(25000), view.Totals.PrePaid)
	assert.Equal(t, int64(44000*4+19000), view.Totals.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetGameParticipantPayment(t *testing.T) {
	participant := &models.GameParticipant{
		ID:           5,
		GameID:       7,
		MemberID:     2,
		PrePaid:      10000,
		CustomAmount: 2000,
	}

	var gotHasPaid bool
	var gotPaidAt *time.Time
	participantRepo := &fakeGameParticipantRepo{
		FindByIDFunc: func(ctx context.Context, id int) (*models.GameParticipant, error) {
			copied := *participant
			return &copied, nil
		},
		UpdatePaymentFunc: func(ctx context.Context, id int, hasPaid bool, paidAt *time.Time) error {
			gotHasPaid = hasPaid
			gotPaidAt = paidAt
			return nil
		},
	}
	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return gameFixture(7, 44000), nil
		},
	}
	hub := &fakeBroadcaster{}
	svc := NewGameService(nil, gameRepo, participantRepo, hub, testLogger())

	updated, err := svc.SetParticipantPayment(context.Background(), 7, 5, true)
	require.NoError(t, err)
	assert.True(t, gotHasPaid)
	require.NotNil(t, gotPaidAt, "PaidAt must be set on false->true transition")
	assert.True(t, updated.HasPaid)
	assert.Equal(t, int64(44000+2000-10000), updated.Owed)
	assert.Equal(t, []string{EventPaymentUpdated}, hub.events)

	// Чужая игра — участник "не найден".
	_, err = svc.SetParticipantPayment(context.Background(), 8, 5, true)
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestSetGameParticipantPaymentGameLoadError(t *testing.T) {
	boom := errors.New("connection reset")
	participantRepo := &fakeGameParticipantRepo{
		FindByIDFunc: func(ctx context.Context, id int) (*models.GameParticipant, error) {
			return &models.GameParticipant{ID: 5, GameID: 7, MemberID: 2, PrePaid: 10000}, nil
		},
		UpdatePaymentFunc: func(ctx context.Context, id int, hasPaid bool, paidAt *time.Time) error {
			return nil
		},
	}
	gameRepo := &fakeGameRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
			return nil, boom
		},
	}
	hub := &fakeBroadcaster{}
	svc := NewGameService(nil, gameRepo, participantRepo, hub, testLogger())

	// Игру прочитать не удалось — долг пересчитать нечем: наружу уходит
	// ошибка, а не участник с нулевым долгом.
	updated, err := svc.SetParticipantPayment(context.Background(), 7, 5, true)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, updated)
	assert.Empty(t, hub.events)
}
