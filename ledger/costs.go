// Package ledger содержит чистую арифметику расчётов клуба: делёж стоимости
// игры, долги участников и агрегаты. Никакого I/O — все функции детерминированы
// и безопасны для конкурентного вызова.
package ledger

// roundingStep — шаг округления доли участника. Сумма на человека округляется
// вверх до ближайшей тысячи донгов, чтобы расчёт наличными был удобным.
const roundingStep int64 = 1000

// GameTotal возвращает полную стоимость игры:
// корт + воланы (количество * цена) + прочие расходы.
func GameTotal(yardCost int64, shuttleQty int, shuttlePrice, otherFees int64) int64 {
	return yardCost + int64(shuttleQty)*shuttlePrice + otherFees
}

// SplitPerMember делит totalCost поровну на participantCount и округляет
// результат вверх до кратного 1000. При пустом составе возвращает 0.
// Гарантия: SplitPerMember(t, n) * n >= t, и это наименьшее кратное 1000
// с таким свойством.
func SplitPerMember(totalCost int64, participantCount int) int64 {
	if participantCount <= 0 {
		return 0
	}
	n := int64(participantCount)
	// ceil(totalCost / n / 1000) * 1000 без плавающей точки
	steps := (totalCost + n*roundingStep - 1) / (n * roundingStep)
	return steps * roundingStep
}

// GameOwed возвращает остаток долга участника игры: доля + надбавка - предоплата.
// Результат может быть отрицательным (переплата) и не обрезается до нуля.
func GameOwed(costPerMember, customAmount, prePaid int64) int64 {
	return costPerMember + customAmount - prePaid
}

// EventOwed возвращает остаток долга участника события. CustomAmount здесь —
// полная назначенная сумма, а не надбавка к делёжке.
func EventOwed(customAmount, prePaid int64) int64 {
	return customAmount - prePaid
}
