package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMembershipChanged(t *testing.T) {
	tests := []struct {
		name      string
		existing  []int
		requested []int
		want      bool
	}{
		{"identical sets", []int{1, 2, 3}, []int{1, 2, 3}, false},
		{"same set different order", []int{1, 2, 3}, []int{3, 1, 2}, false},
		{"member added", []int{1, 2}, []int{1, 2, 3}, true},
		{"member removed", []int{1, 2, 3}, []int{1, 2}, true},
		{"member swapped", []int{1, 2, 3}, []int{1, 2, 4}, true},
		{"both empty", nil, nil, false},
		{"emptied out", []int{1}, nil, true},
		{"duplicates collapse", []int{1, 2, 2}, []int{2, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MembershipChanged(tt.existing, tt.requested))
		})
	}
}
