package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameTotal(t *testing.T) {
	tests := []struct {
		name         string
		yardCost     int64
		shuttleQty   int
		shuttlePrice int64
		otherFees    int64
		want         int64
	}{
		{"typical session", 160000, 2, 18000, 20000, 216000},
		{"no shuttles", 100000, 0, 18000, 0, 100000},
		{"all zero", 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GameTotal(tt.yardCost, tt.shuttleQty, tt.shuttlePrice, tt.otherFees)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitPerMember(t *testing.T) {
	tests := []struct {
		name      string
		totalCost int64
		count     int
		want      int64
	}{
		{"205000 over 7 rounds up to 30000", 205000, 7, 30000},
		{"216000 over 5 rounds up to 44000", 216000, 5, 44000},
		{"exact multiple stays", 210000, 7, 30000},
		{"single participant", 205000, 1, 205000},
		{"zero participants", 205000, 0, 0},
		{"zero cost", 0, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPerMember(tt.totalCost, tt.count))
		})
	}
}

// Для диапазона входов проверяем договор целиком: доля кратна 1000, покрывает
// полную стоимость и является наименьшим таким кратным.
func TestSplitPerMemberCoversTotal(t *testing.T) {
	for total := int64(0); total <= 50000; total += 715 {
		for count := 1; count <= 9; count++ {
			per := SplitPerMember(total, count)
			assert.Zerof(t, per%1000, "total=%d count=%d per=%d", total, count, per)
			assert.GreaterOrEqualf(t, per*int64(count), total, "total=%d count=%d per=%d", total, count, per)
			if per >= 1000 {
				assert.Lessf(t, (per-1000)*int64(count), total,
					"total=%d count=%d: %d is not the smallest covering multiple", total, count, per)
			}
		}
	}
}

func TestOwedKeepsSign(t *testing.T) {
	// Переплата должна оставаться отрицательной, не обрезаться до нуля.
	assert.Equal(t, int64(-20000), GameOwed(30000, 0, 50000))
	assert.Equal(t, int64(35000), GameOwed(30000, 5000, 0))
	assert.Equal(t, int64(-5000), EventOwed(15000, 20000))
	assert.Equal(t, int64(15000), EventOwed(15000, 0))
}

func TestFullGameScenario(t *testing.T) {
	total := GameTotal(160000, 2, 18000, 20000)
	assert.Equal(t, int64(216000), total)

	per := SplitPerMember(total, 5)
	assert.Equal(t, int64(44000), per)

	for i := 0; i < 5; i++ {
		assert.Equal(t, int64(44000), GameOwed(per, 0, 0))
	}
}
