package http

import (
	"net/http"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/stocktrail/stocktrail/pkg/response"
)

// LabelHandler renders entity codes as QR label images. Encoding is
// delegated entirely to the qrcode library.
type LabelHandler struct {
	ledger LedgerService
}

// NewLabelHandler creates a new label handler
func NewLabelHandler(ledgerService LedgerService) *LabelHandler {
	return &LabelHandler{ledger: ledgerService}
}

// RegisterRoutes registers label routes
func (h *LabelHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/entities/{id}/label", h.GetLabel).Methods("GET")
}

// GetLabel returns a QR PNG of the entity's code, or its id for kinds
// without a code field.
func (h *LabelHandler) GetLabel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	entity, err := h.ledger.GetEntity(r.Context(), vars["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payload := entity.ID
	if code, ok := entity.Fields["code"].(string); ok && code != "" {
		payload = code
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "LABEL_ENCODING", "Failed to encode label")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
