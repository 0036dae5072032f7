// Package handler exposes the ownership service over HTTP. Handlers stay
// thin: decode, delegate, encode. All authorization and domain decisions live
// in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clubhub/internal/ownership/models"
	platformMetrics "clubhub/internal/platform/metrics"
	"clubhub/internal/platform/middleware"
	"clubhub/internal/transport/http/shared"
	dErrors "clubhub/pkg/domain-errors"
	"clubhub/pkg/requestcontext"
)

// Service is the ownership engine surface the handler needs.
type Service interface {
	GetOwnership(ctx context.Context, kind models.EntityKind, entityID int64) (*models.OwnedEntity, error)
	CheckOwnership(ctx context.Context, kind models.EntityKind, entityID, userID int64) (*models.OwnershipCheck, error)
	TransferOwnership(ctx context.Context, kind models.EntityKind, entityID, actingUserID, newOwnerID int64, reason *string) (*models.OwnershipTransfer, error)
	CreateUnclaimedEntity(ctx context.Context, kind models.EntityKind, entityID, adminUserID int64) (string, error)
	ClaimWithCode(ctx context.Context, kind models.EntityKind, entityID int64, claimCode string, claimingUserID int64) (*models.OwnershipTransfer, error)
	RegenerateClaimCode(ctx context.Context, kind models.EntityKind, entityID, actingUserID int64) (string, error)
	SubmitClaimRequest(ctx context.Context, kind models.EntityKind, entityID, claimerID int64, claimReason string, verificationInfo json.RawMessage) (*models.OwnershipClaim, error)
	ReviewClaimRequest(ctx context.Context, claimID uuid.UUID, reviewerID int64, approved bool, reviewNotes *string) (*models.OwnershipClaim, error)
	PendingClaims(ctx context.Context, actingUserID int64, kind *models.EntityKind) ([]*models.OwnershipClaim, error)
	TransferHistory(ctx context.Context, kind models.EntityKind, entityID int64) ([]*models.OwnershipTransfer, error)
	OwnedEntities(ctx context.Context, userID int64, kind *models.EntityKind) ([]*models.OwnedEntity, error)
	UnclaimedEntities(ctx context.Context, actingUserID int64, kind *models.EntityKind) ([]*models.OwnedEntity, error)
}

// Handler handles ownership endpoints.
type Handler struct {
	logger    *slog.Logger
	ownership Service
	metrics   *platformMetrics.Metrics
	validator middleware.TokenValidator
}

func New(ownership Service, logger *slog.Logger, metrics *platformMetrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		ownership: ownership,
		metrics:   metrics,
		validator: validator,
	}
}

// Register mounts the ownership routes with the full middleware chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))
	router.Use(middleware.RequireAuth(h.validator, h.logger))

	router.Route("/ownership", func(r chi.Router) {
		r.Get("/mine", h.handleOwnedEntities)
		r.Route("/{kind}/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetOwnership)
			r.Get("/check", h.handleCheckOwnership)
			r.Get("/history", h.handleTransferHistory)
			r.Post("/transfer", h.handleTransfer)
			r.Post("/claim", h.handleClaimWithCode)
			r.Post("/claims", h.handleSubmitClaim)
		})
	})
	router.Route("/admin", func(r chi.Router) {
		r.Post("/ownership/{kind}/{id}/unclaimed", h.handleCreateUnclaimed)
		r.Post("/ownership/{kind}/{id}/claim-code", h.handleRegenerateClaimCode)
		r.Get("/ownership/unclaimed", h.handleUnclaimedEntities)
		r.Get("/claims/pending", h.handlePendingClaims)
		r.Post("/claims/{claimID}/review", h.handleReviewClaim)
	})

	r.Mount("/", router)
}

// entityRef parses the kind and id URL params.
func entityRef(r *http.Request) (models.EntityKind, int64, error) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return "", 0, dErrors.New(dErrors.CodeBadRequest, "invalid entity id")
	}
	return kind, id, nil
}

// kindFilter parses the optional ?kind= query parameter.
func kindFilter(r *http.Request) (*models.EntityKind, error) {
	raw := r.URL.Query().Get("kind")
	if raw == "" {
		return nil, nil
	}
	kind, err := models.ParseKind(raw)
	if err != nil {
		return nil, err
	}
	return &kind, nil
}

// actingUser reads the authenticated user id that RequireAuth put in context.
func (h *Handler) actingUser(ctx context.Context, w http.ResponseWriter) (int64, bool) {
	userID, ok := requestcontext.UserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user id missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return 0, false
	}
	return userID, true
}

// respondError logs and writes a service error. Client errors log at warn,
// everything else at error.
func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	attrs := []any{
		"operation", op,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeStorage, dErrors.CodeConfiguration, "":
		h.logger.ErrorContext(ctx, "ownership operation failed", attrs...)
	default:
		h.logger.WarnContext(ctx, "ownership operation rejected", attrs...)
	}
	shared.WriteError(w, err)
}

func (h *Handler) handleGetOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, id, err := entityRef(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	entity, err := h.ownership.GetOwnership(ctx, kind, id)
	if err != nil {
		h.respondError(ctx, w, "get_ownership", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entity)
}

func (h *Handler) handleCheckOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, id, err := entityRef(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	check, err := h.ownership.CheckOwnership(ctx, kind, id, userID)
	if err != nil {
		h.respondError(ctx, w, "check_ownership", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, check)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, id, err := entityRef(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	transfer, err := h.ownership.TransferOwnership(ctx, kind, id, userID, req.NewOwnerID, req.Reason)
	if err != nil {
		h.respondError(ctx, w, "transfer_ownership", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Handler) handleClaimWithCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, id, err := entityRef(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	transfer, err := h.ownership.ClaimWithCode(ctx, kind, id, req.ClaimCode, userID)
	if err != nil {
		h.respondError(ctx, w, "claim_with_code", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Handler) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, id, err := entityRef(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	var req submitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	claim, err := h.ownership.SubmitClaimRequest(ctx, kind, id, userID, req.Reason, req.VerificationInfo)
	if err != nil {
		h.respondError(ctx, w, "submit_claim", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, claim)
}

func (h *Handler) handleTransferHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, id, err := entityRef(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	transfers, err := h.ownership.TransferHistory(ctx, kind, id)
	if err != nil {
		h.respondError(ctx, w, "transfer_history", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}

func (h *Handler) handleOwnedEntities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	kind, err := kindFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	entities, err := h.ownership.OwnedEntities(ctx, userID, kind)
	if err != nil {
		h.respondError(ctx, w, "owned_entities", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (h *Handler) handleCreateUnclaimed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, id, err := entityRef(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	code, err := h.ownership.CreateUnclaimedEntity(ctx, kind, id, userID)
	if err != nil {
		h.respondError(ctx, w, "create_unclaimed", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, claimCodeResponse{ClaimCode: code})
}

func (h *Handler) handleRegenerateClaimCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, id, err := entityRef(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	code, err := h.ownership.RegenerateClaimCode(ctx, kind, id, userID)
	if err != nil {
		h.respondError(ctx, w, "regenerate_claim_code", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, claimCodeResponse{ClaimCode: code})
}

func (h *Handler) handleUnclaimedEntities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	kind, err := kindFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	entities, err := h.ownership.UnclaimedEntities(ctx, userID, kind)
	if err != nil {
		h.respondError(ctx, w, "unclaimed_entities", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (h *Handler) handlePendingClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	kind, err := kindFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	claims, err := h.ownership.PendingClaims(ctx, userID, kind)
	if err != nil {
		h.respondError(ctx, w, "pending_claims", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

func (h *Handler) handleReviewClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, err := uuid.Parse(chi.URLParam(r, "claimID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid claim id"))
		return
	}
	userID, ok := h.actingUser(ctx, w)
	if !ok {
		return
	}
	var req reviewClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Approved == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "approved is required"))
		return
	}
	claim, err := h.ownership.ReviewClaimRequest(ctx, claimID, userID, *req.Approved, req.ReviewNotes)
	if err != nil {
		h.respondError(ctx, w, "review_claim", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, claim)
}
