package models

import "time"

// PersonalEvent — произвольное событие с общими расходами (ужин, выезд и т.п.).
// В отличие от Game, сумма каждого участника назначается индивидуально:
// TotalCost здесь справочное поле, поровну ничего не делится.
type PersonalEvent struct {
	ID          int       `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description *string   `json:"description,omitempty" db:"description"`
	Date        time.Time `json:"date" db:"date"`
	Location    *string   `json:"location,omitempty" db:"location"`
	TotalCost   int64     `json:"total_cost" db:"total_cost"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	Participants []PersonalEventParticipant `json:"participants,omitempty" db:"-"`
}

// PersonalEventParticipant — платёжное состояние участника события.
// CustomAmount здесь — полная сумма долга участника, не надбавка.
// Owed = CustomAmount - PrePaid, знак сохраняется.
type PersonalEventParticipant struct {
	ID              int        `json:"id" db:"id"`
	EventID         int        `json:"event_id" db:"event_id"`
	MemberID        int        `json:"member_id" db:"member_id"`
	HasPaid         bool       `json:"has_paid" db:"has_paid"`
	PaidAt          *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	PrePaid         int64      `json:"pre_paid" db:"pre_paid"`
	PrePaidCategory string     `json:"pre_paid_category" db:"pre_paid_category"`
	CustomAmount    int64      `json:"custom_amount" db:"custom_amount"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`

	Member *Member        `json:"member,omitempty" db:"-"`
	Event  *PersonalEvent `json:"event,omitempty" db:"-"`
	Owed   int64          `json:"owed" db:"-"`
}
