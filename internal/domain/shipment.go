package domain

// ReconciliationItem compares expected vs received counts for one child
// kind of a shipment. Delta is received minus expected.
type ReconciliationItem struct {
	Kind     EntityKind `json:"kind"`
	Expected int64      `json:"expected"`
	Received int64      `json:"received"`
	Delta    int64      `json:"delta"`
}

// ReconciliationResult is the per-shipment discrepancy report.
type ReconciliationResult struct {
	ShipmentID string               `json:"shipment_id"`
	Code       string               `json:"code"`
	Items      []ReconciliationItem `json:"items"`
	Balanced   bool                 `json:"balanced"`
}
