package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPalletStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    PalletStatus
		to      PalletStatus
		allowed bool
	}{
		{"arriving to warehoused", PalletStatusArriving, PalletStatusWarehoused, true},
		{"warehoused to unpacked", PalletStatusWarehoused, PalletStatusUnpacked, true},
		{"unpacked to repacked", PalletStatusUnpacked, PalletStatusRepacked, true},
		{"repacked to outgoing", PalletStatusRepacked, PalletStatusOutgoing, true},
		{"arriving cannot skip to unpacked", PalletStatusArriving, PalletStatusUnpacked, false},
		{"warehoused cannot go back to arriving", PalletStatusWarehoused, PalletStatusArriving, false},
		{"outgoing cannot return to warehoused", PalletStatusOutgoing, PalletStatusWarehoused, false},
		{"outgoing has no successors", PalletStatusOutgoing, PalletStatusOutgoing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPalletStatusIsTerminal(t *testing.T) {
	assert.True(t, PalletStatusOutgoing.IsTerminal())
	assert.False(t, PalletStatusArriving.IsTerminal())
	assert.False(t, PalletStatusRepacked.IsTerminal())
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus("arriving"))
	assert.True(t, IsValidStatus("outgoing"))
	assert.False(t, IsValidStatus("teleported"))
	assert.False(t, IsValidStatus(""))
}
