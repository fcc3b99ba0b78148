package contact

import (
	"log/slog"

	"identify/internal/contact/handler"
	"identify/internal/contact/service"
)

// Service exposes identity consolidation.
type Service = service.Service

// Handler wires HTTP endpoints to the consolidation service.
type Handler = handler.Handler

// NewService constructs the consolidation service over store.
func NewService(store service.Store, opts ...service.Option) *Service {
	return service.New(store, opts...)
}

// NewHandler constructs the HTTP handler for POST /identify.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
