package models

import "time"

// Game — одна игровая сессия с общими расходами, которые делятся поровну.
// TotalCost и CostPerMember — производные поля, пересчитываются сервисом
// при каждом изменении состава или стоимости (см. пакет ledger).
type Game struct {
	ID                  int       `json:"id" db:"id"`
	Date                time.Time `json:"date" db:"date"`
	Location            *string   `json:"location,omitempty" db:"location"`
	YardCost            int64     `json:"yard_cost" db:"yard_cost"`
	ShuttleCockQuantity int       `json:"shuttle_cock_quantity" db:"shuttle_cock_quantity"`
	ShuttleCockPrice    int64     `json:"shuttle_cock_price" db:"shuttle_cock_price"`
	OtherFees           int64     `json:"other_fees" db:"other_fees"`
	TotalCost           int64     `json:"total_cost" db:"total_cost"`
	CostPerMember       int64     `json:"cost_per_member" db:"cost_per_member"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`

	// Связанные сущности (не мапятся напрямую)
	Participants []GameParticipant `json:"participants,omitempty" db:"-"`
}

// GameParticipant связывает участника с игрой и несёт платёжное состояние.
// Owed — производное поле: CostPerMember + CustomAmount - PrePaid, может быть
// отрицательным (переплата) и намеренно не обрезается до нуля.
type GameParticipant struct {
	ID              int        `json:"id" db:"id"`
	GameID          int        `json:"game_id" db:"game_id"`
	MemberID        int        `json:"member_id" db:"member_id"`
	HasPaid         bool       `json:"has_paid" db:"has_paid"`
	PaidAt          *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	PrePaid         int64      `json:"pre_paid" db:"pre_paid"`
	PrePaidCategory string     `json:"pre_paid_category" db:"pre_paid_category"`
	CustomAmount    int64      `json:"custom_amount" db:"custom_amount"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`

	Member *Member `json:"member,omitempty" db:"-"`
	Game   *Game   `json:"game,omitempty" db:"-"`
	Owed   int64   `json:"owed" db:"-"`
}
