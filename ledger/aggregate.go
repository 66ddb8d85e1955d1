package ledger

// Entry — вклад одного участника в агрегаты по игре или событию.
type Entry struct {
	Owed    int64
	PrePaid int64
	HasPaid bool
}

// Totals — сводные суммы по игре или событию.
type Totals struct {
	PrePaid   int64 `json:"pre_paid"`
	Remaining int64 `json:"remaining"`
	Collected int64 `json:"collected"`
}

// Aggregate считает сводку: вся предоплата, остаток по неоплатившим и
// собранное (предоплата + долги тех, кто отметился оплатившим).
func Aggregate(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		t.PrePaid += e.PrePaid
		if e.HasPaid {
			t.Collected += e.Owed
		} else {
			t.Remaining += e.Owed
		}
	}
	t.Collected += t.PrePaid
	return t
}

// MemberOutstanding суммирует долги участника по всем неоплаченным играм и
// событиям в одну сумму — её и кодирует платёжный QR. Пустые списки дают 0.
func MemberOutstanding(unpaidGameOwed, unpaidEventOwed []int64) int64 {
	var total int64
	for _, owed := range unpaidGameOwed {
		total += owed
	}
	for _, owed := range unpaidEventOwed {
		total += owed
	}
	return total
}
