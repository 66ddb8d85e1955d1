package ledger

import "time"

// ParticipantState — полностью заполненное платёжное состояние участника,
// готовое к записи в строку join-таблицы.
type ParticipantState struct {
	HasPaid         bool
	PaidAt          *time.Time
	PrePaid         int64
	PrePaidCategory string
	CustomAmount    int64
}

// ParticipantPatch — частичное обновление: nil-поле означает "не трогать,
// взять из существующей записи (или значение по умолчанию для новой)".
type ParticipantPatch struct {
	HasPaid         *bool
	PaidAt          *time.Time
	PrePaid         *int64
	PrePaidCategory *string
	CustomAmount    *int64
}

// MergeParticipant строит состояние участника по цепочке
// "запрошенное -> существующее -> по умолчанию". Для участника, который уже
// был в составе, незатронутые патчем поля наследуются из existing — так
// платёжная история (HasPaid, PrePaid) переживает физическое пересоздание
// строки при смене состава.
func MergeParticipant(patch ParticipantPatch, existing *ParticipantState) ParticipantState {
	var state ParticipantState
	if existing != nil {
		state = *existing
	}
	if patch.HasPaid != nil {
		state.HasPaid = *patch.HasPaid
	}
	if patch.PaidAt != nil {
		state.PaidAt = patch.PaidAt
	}
	if patch.PrePaid != nil {
		state.PrePaid = *patch.PrePaid
	}
	if patch.PrePaidCategory != nil {
		state.PrePaidCategory = *patch.PrePaidCategory
	}
	if patch.CustomAmount != nil {
		state.CustomAmount = *patch.CustomAmount
	}
	return state
}

// Equal сравнивает состояния по полям. PaidAt сравнивается через time.Equal,
// nil равен только nil. Используется для пропуска пустых апдейтов.
func (s ParticipantState) Equal(other ParticipantState) bool {
	if s.HasPaid != other.HasPaid ||
		s.PrePaid != other.PrePaid ||
		s.PrePaidCategory != other.PrePaidCategory ||
		s.CustomAmount != other.CustomAmount {
		return false
	}
	if s.PaidAt == nil || other.PaidAt == nil {
		return s.PaidAt == other.PaidAt
	}
	return s.PaidAt.Equal(*other.PaidAt)
}
