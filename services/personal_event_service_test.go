package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/caulonghn/club-manager/models"
	"github.com/caulonghn/club-manager/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersonalEventRepo struct {
	GetByIDFunc func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.PersonalEvent, error)
	UpdateFunc  func(ctx context.Context, exec repositories.SQLExecutor, event *models.PersonalEvent) error
	ListFunc    func(ctx context.Context, limit, offset int) ([]*models.PersonalEvent, error)
	DeleteFunc  func(ctx context.Context, id int) error
}

func (f *fakePersonalEventRepo) Create(ctx context.Context, event *models.PersonalEvent) error {
	panic("unexpected Create call")
}

func (f *fakePersonalEventRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.PersonalEvent, error) {
	return f.GetByIDFunc(ctx, exec, id)
}

func (f *fakePersonalEventRepo) List(ctx context.Context, limit, offset int) ([]*models.PersonalEvent, error) {
	return f.ListFunc(ctx, limit, offset)
}

func (f *fakePersonalEventRepo) Update(ctx context.Context, exec repositories.SQLExecutor, event *models.PersonalEvent) error {
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, exec, event)
	}
	return nil
}

func (f *fakePersonalEventRepo) Delete(ctx context.Context, id int) error {
	return f.DeleteFunc(ctx, id)
}

type recordingEventParticipantRepo struct {
	fakeEventParticipantRepo

	existing []*models.PersonalEventParticipant

	created      []*models.PersonalEventParticipant
	updated      []*models.PersonalEventParticipant
	deletedEvent []int
}

func (f *recordingEventParticipantRepo) ListByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int, includeMember bool) ([]*models.PersonalEventParticipant, error) {
	return f.existing, nil
}

func (f *recordingEventParticipantRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, participants []*models.PersonalEventParticipant) error {
	f.created = append(f.created, participants...)
	return nil
}

func (f *recordingEventParticipantRepo) DeleteByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
	f.deletedEvent = append(f.deletedEvent, eventID)
	return nil
}

func (f *recordingEventParticipantRepo) UpdateFields(ctx context.Context, exec repositories.SQLExecutor, p *models.PersonalEventParticipant) error {
	f.updated = append(f.updated, p)
	return nil
}

func eventFixture(id int) *models.PersonalEvent {
	return &models.PersonalEvent{
		ID:        id,
		Title:     "Liên hoan cuối năm",
		Date:      time.Date(2026, 12, 28, 18, 0, 0, 0, time.UTC),
		TotalCost: 1200000,
	}
}

func TestUpdateEventRecreatePreservesPaymentHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	paidAt := time.Date(2026, 12, 20, 9, 0, 0, 0, time.UTC)
	participantRepo := &recordingEventParticipantRepo{
		existing: []*models.PersonalEventParticipant{
			{ID: 1, EventID: 5, MemberID: 1, HasPaid: true, PaidAt: &paidAt, CustomAmount: 400000},
			{ID: 2, EventID: 5, MemberID: 2, CustomAmount: 400000},
		},
	}
	eventRepo := &fakePersonalEventRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.PersonalEvent, error) {
			return eventFixture(5), nil
		},
	}
	hub := &fakeBroadcaster{}
	svc := NewPersonalEventService(db, eventRepo, participantRepo, hub, testLogger())

	// Участник 2 уходит, 3 приходит; у новичка долг задаётся явно.
	ids := []int{1, 3}
	view, err := svc.UpdateEvent(context.Background(), 5, UpdatePersonalEventInput{
		ParticipantIDs: &ids,
		CustomAmounts:  map[int]int64{3: 500000},
	})
	require.NoError(t, err)
	require.NotNil(t, view)

	assert.Equal(t, []int{5}, participantRepo.deletedEvent)
	require.Len(t, participantRepo.created, 2)

	retained := participantRepo.created[0]
	assert.True(t, retained.HasPaid)
	require.NotNil(t, retained.PaidAt)
	assert.Equal(t, int64(400000), retained.CustomAmount)

	added := participantRepo.created[1]
	assert.Equal(t, 3, added.MemberID)
	assert.Equal(t, int64(500000), added.CustomAmount)
	assert.False(t, added.HasPaid)

	assert.Equal(t, []string{EventEventUpdated}, hub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEventPatchesOnlyChangedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	participantRepo := &recordingEventParticipantRepo{
		existing: []*models.PersonalEventParticipant{
			{ID: 1, EventID: 5, MemberID: 1, CustomAmount: 400000},
			{ID: 2, EventID: 5, MemberID: 2, CustomAmount: 400000},
		},
	}
	eventRepo := &fakePersonalEventRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.PersonalEvent, error) {
			return eventFixture(5), nil
		},
	}
	svc := NewPersonalEventService(db, eventRepo, participantRepo, nil, testLogger())

	// Состав прежний; долг меняется только у участника 2, у первого прежнее значение.
	ids := []int{1, 2}
	_, err = svc.UpdateEvent(context.Background(), 5, UpdatePersonalEventInput{
		ParticipantIDs: &ids,
		CustomAmounts:  map[int]int64{1: 400000, 2: 450000},
	})
	require.NoError(t, err)

	assert.Empty(t, participantRepo.deletedEvent)
	assert.Empty(t, participantRepo.created)
	require.Len(t, participantRepo.updated, 1)
	assert.Equal(t, 2, participantRepo.updated[0].MemberID)
	assert.Equal(t, int64(450000), participantRepo.updated[0].CustomAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEventValidatesPaymentsWithoutRoster(t *testing.T) {
	// Отрицательная сумма отклоняется до открытия транзакции, даже когда
	// participant_ids не присланы.
	svc := NewPersonalEventService(nil, &fakePersonalEventRepo{}, &recordingEventParticipantRepo{}, nil, testLogger())
	view, err := svc.UpdateEvent(context.Background(), 5, UpdatePersonalEventInput{
		CustomAmounts: map[int]int64{2: -400000},
	})
	assert.ErrorIs(t, err, ErrNegativeAmount)
	assert.Nil(t, view)

	// Платёж для участника вне текущего состава откатывает транзакцию.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	participantRepo := &recordingEventParticipantRepo{
		existing: []*models.PersonalEventParticipant{
			{ID: 1, EventID: 5, MemberID: 1, CustomAmount: 400000},
			{ID: 2, EventID: 5, MemberID: 2, CustomAmount: 400000},
		},
	}
	eventRepo := &fakePersonalEventRepo{
		GetByIDFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.PersonalEvent, error) {
			return eventFixture(5), nil
		},
	}
	svc = NewPersonalEventService(db, eventRepo, participantRepo, nil, testLogger())

	view, err = svc.UpdateEvent(context.Background(), 5, UpdatePersonalEventInput{
		PrePaid: map[int]PrePayment{9: {Amount: 100000}},
	})
	assert.ErrorIs(t, err, ErrParticipantUnknownMember)
	assert.Nil(t, view)
	assert.Empty(t, participantRepo.updated)
	assert.Empty(t, participantRepo.created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEventRequiresTitle(t *testing.T) {
	svc := NewPersonalEventService(nil, &fakePersonalEventRepo{}, &recordingEventParticipantRepo{}, nil, testLogger())

	_, err := svc.CreateEvent(context.Background(), CreatePersonalEventInput{
		Date: time.Now(),
	})
	assert.ErrorIs(t, err, ErrEventTitleRequired)
}
