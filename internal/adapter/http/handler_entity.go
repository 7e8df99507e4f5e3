package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/ledger"
	"github.com/stocktrail/stocktrail/pkg/apperror"
	"github.com/stocktrail/stocktrail/pkg/response"
)

// LedgerService is the ledger surface the HTTP layer depends on.
type LedgerService interface {
	RecordCreate(ctx context.Context, kind domain.EntityKind, initialFields domain.Fields, actor string) (*ledger.CreateResult, error)
	RecordMutation(ctx context.Context, entityID string, changes domain.Fields, actor string, action domain.AuditAction) (int64, error)
	History(ctx context.Context, entityID string) ([]domain.AuditRecord, error)
	GetEntity(ctx context.Context, entityID string) (*domain.TrackedEntity, error)
	ListEntities(ctx context.Context, kind domain.EntityKind, limit, offset int) ([]*domain.TrackedEntity, int, error)
	ReconcileShipment(ctx context.Context, shipmentID string) (*domain.ReconciliationResult, error)
}

// EntityHandler handles HTTP requests for tracked entities
type EntityHandler struct {
	ledger LedgerService
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(ledgerService LedgerService) *EntityHandler {
	return &EntityHandler{ledger: ledgerService}
}

// RegisterRoutes registers entity routes
func (h *EntityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/entities", h.CreateEntity).Methods("POST")
	router.HandleFunc("/api/v1/entities", h.ListEntities).Methods("GET")
	router.HandleFunc("/api/v1/entities/{id}", h.GetEntity).Methods("GET")
	router.HandleFunc("/api/v1/entities/{id}", h.MutateEntity).Methods("PATCH")
	router.HandleFunc("/api/v1/entities/{id}/history", h.GetHistory).Methods("GET")
}

// CreateEntityRequest is the body of POST /entities.
type CreateEntityRequest struct {
	Kind   domain.EntityKind `json:"kind"`
	Fields domain.Fields     `json:"fields"`
}

// CreateEntity handles entity creation
func (h *EntityHandler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	actor := actorFrom(r)
	if actor == "" {
		response.Unauthorized(w, "Actor identity is required")
		return
	}

	result, err := h.ledger.RecordCreate(r.Context(), req.Kind, req.Fields, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, http.StatusCreated, "Entity created", result)
}

// MutateEntityRequest is the body of PATCH /entities/{id}.
type MutateEntityRequest struct {
	Action domain.AuditAction `json:"action"`
	Fields domain.Fields      `json:"fields"`
}

// MutateEntity handles audited field mutations
func (h *EntityHandler) MutateEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entityID := vars["id"]

	var req MutateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Action == "" {
		req.Action = domain.AuditActionUpdate
	}

	actor := actorFrom(r)
	if actor == "" {
		response.Unauthorized(w, "Actor identity is required")
		return
	}

	seq, err := h.ledger.RecordMutation(r.Context(), entityID, req.Fields, actor, req.Action)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Entity mutated", map[string]interface{}{
		"audit_seq": seq,
	})
}

// GetEntity handles retrieving a single entity
func (h *EntityHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	entity, err := h.ledger.GetEntity(r.Context(), vars["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Entity retrieved", entity)
}

// ListEntities handles listing entities of one kind with pagination
func (h *EntityHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	kind := domain.EntityKind(r.URL.Query().Get("kind"))

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsed
		}
	}

	entities, total, err := h.ledger.ListEntities(r.Context(), kind, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Entities retrieved", map[string]interface{}{
		"entities": entities,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetHistory handles retrieving the audit chain of one entity
func (h *EntityHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	records, err := h.ledger.History(r.Context(), vars["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}

	response.Success(w, http.StatusOK, "History retrieved", records)
}

func writeDomainError(w http.ResponseWriter, err error) {
	appErr := apperror.MapError(err)
	response.Error(w, appErr.Status, appErr.Code, appErr.Message)
}
