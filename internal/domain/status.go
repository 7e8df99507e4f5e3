package domain

// PalletStatus represents the lifecycle status of a pallet
type PalletStatus string

const (
	PalletStatusArriving   PalletStatus = "arriving"
	PalletStatusWarehoused PalletStatus = "warehoused"
	PalletStatusUnpacked   PalletStatus = "unpacked"
	PalletStatusRepacked   PalletStatus = "repacked"
	PalletStatusOutgoing   PalletStatus = "outgoing"
)

// statusTransitions is the allowed transition table. The lifecycle is a
// straight chain; outgoing has no successors and is terminal.
var statusTransitions = map[PalletStatus][]PalletStatus{
	PalletStatusArriving:   {PalletStatusWarehoused},
	PalletStatusWarehoused: {PalletStatusUnpacked},
	PalletStatusUnpacked:   {PalletStatusRepacked},
	PalletStatusRepacked:   {PalletStatusOutgoing},
	PalletStatusOutgoing:   {},
}

// IsValidStatus reports whether s is a recognized status value.
func IsValidStatus(s string) bool {
	_, ok := statusTransitions[PalletStatus(s)]
	return ok
}

// IsTerminal reports whether a pallet in status s accepts no further mutation.
func (s PalletStatus) IsTerminal() bool {
	return s == PalletStatusOutgoing
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s PalletStatus) CanTransitionTo(next PalletStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
