package ledger

// MembershipChanged сообщает, отличается ли запрошенный состав участников от
// текущего как множество: порядок и дубликаты не учитываются. Результат решает,
// какой путь выберет сервис — полное пересоздание строк или точечные апдейты.
func MembershipChanged(existing, requested []int) bool {
	existingSet := make(map[int]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}
	requestedSet := make(map[int]struct{}, len(requested))
	for _, id := range requested {
		requestedSet[id] = struct{}{}
	}
	if len(existingSet) != len(requestedSet) {
		return true
	}
	for id := range existingSet {
		if _, ok := requestedSet[id]; !ok {
			return true
		}
	}
	return false
}
