package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"identify/internal/contact/models"
	"identify/internal/platform/middleware"
	dErrors "identify/pkg/domain-errors"
	"identify/pkg/platform/httputil"
)

// Service defines the interface for identity consolidation.
type Service interface {
	Consolidate(ctx context.Context, req *models.ConsolidateRequest) (*models.Result, error)
}

// Handler serves the identity endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the identity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identify", h.HandleIdentify)
}

// HandleIdentify consolidates the submitted email and phone number and
// returns the identity they belong to.
func (h *Handler) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IdentifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Consolidate(ctx, req.ToModel())
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to consolidate contact",
				"request_id", requestID,
				"error", err,
			)
		} else {
			h.logger.WarnContext(ctx, "consolidate contact rejected",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toIdentifyResponse(res.Contact))
}
