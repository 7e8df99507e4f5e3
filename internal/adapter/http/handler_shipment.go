package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stocktrail/stocktrail/pkg/response"
)

// ShipmentHandler handles shipment reconciliation requests
type ShipmentHandler struct {
	ledger LedgerService
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(ledgerService LedgerService) *ShipmentHandler {
	return &ShipmentHandler{ledger: ledgerService}
}

// RegisterRoutes registers shipment routes
func (h *ShipmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/shipments/{id}/reconciliation", h.GetReconciliation).Methods("GET")
}

// GetReconciliation compares a shipment's expected counts against the
// entities currently linked to it.
func (h *ShipmentHandler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	result, err := h.ledger.ReconcileShipment(r.Context(), vars["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Reconciliation computed", result)
}
