package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"identify/internal/contact/lock"
	"identify/internal/contact/metrics"
	"identify/internal/contact/models"
	dErrors "identify/pkg/domain-errors"
	"identify/pkg/platform/sentinel"
	"identify/pkg/requestcontext"
)

const instrumentationName = "identify/internal/contact/service"

// Store persists contacts. Implementations return results ordered oldest
// first (models.CompareAge) and wrap sentinel.ErrNotFound for missing rows.
type Store interface {
	FindMatching(ctx context.Context, match models.Match) ([]*models.Contact, error)
	FindByID(ctx context.Context, id int64) (*models.Contact, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*models.Contact, error)
	FindLinked(ctx context.Context, primaryIDs ...int64) ([]*models.Contact, error)
	Create(ctx context.Context, contact *models.Contact) error
	Relink(ctx context.Context, scope models.RelinkScope, primaryID int64, now time.Time) (int64, error)
}

// StoreTx runs fn atomically. Stores read the transaction from the context.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes requests that share an identity key.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// EventPublisher delivers committed identity changes.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// ResolutionMode controls how far the resolver walks from the submitted
// identifiers.
type ResolutionMode string

const (
	// ResolutionOneHop considers only rows sharing a submitted email or phone.
	ResolutionOneHop ResolutionMode = "one_hop"
	// ResolutionTransitive expands to every row reachable through shared
	// identifiers or links.
	ResolutionTransitive ResolutionMode = "transitive"
)

func (m ResolutionMode) IsValid() bool {
	return m == ResolutionOneHop || m == ResolutionTransitive
}

// Service consolidates contact submissions into one identity per cluster.
type Service struct {
	store     Store
	tx        StoreTx
	locker    Locker
	publisher EventPublisher
	mode      ResolutionMode
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx runs each consolidation inside a store transaction.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithLocker replaces the default in-process locker, e.g. with a Redis-backed
// one when several replicas share a database.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithResolutionMode(mode ResolutionMode) Option {
	return func(s *Service) {
		if mode.IsValid() {
			s.mode = mode
		}
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     passthroughTx{},
		locker: lock.NewLocal(),
		mode:   ResolutionOneHop,
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Consolidate links the submitted identifiers to an identity and returns its
// consolidated view. Requests sharing an email or phone are serialized by the
// locker and the read-decide-write-read sequence runs in one transaction.
func (s *Service) Consolidate(ctx context.Context, req *models.ConsolidateRequest) (res *models.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "contact.consolidate")
	defer func() { endSpan(span, err) }()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeValidation, models.ErrIdentifierRequired)
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("has_email", req.Email != nil),
		attribute.Bool("has_phone", req.PhoneNumber != nil),
		attribute.String("resolution_mode", string(s.mode)),
	)

	if s.metrics != nil {
		defer s.metrics.ObserveConsolidate(time.Now())
	}

	release, err := s.locker.Acquire(ctx, req.LockKeys())
	if err != nil {
		return nil, translateLockError(err)
	}

	// The lock covers the transaction only; metrics, logging and event
	// delivery run after it is released.
	var plan *consolidation
	err = func() error {
		defer release()
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			var runErr error
			plan, runErr = s.consolidate(txCtx, req)
			return runErr
		})
	}()
	if err != nil {
		if isCoded(err) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consolidate contact")
	}

	span.SetAttributes(
		attribute.String("outcome", string(plan.outcome)),
		attribute.Int64("primary_contact_id", plan.view.PrimaryContactID),
	)
	s.recordOutcome(plan)
	s.logOutcome(ctx, plan)
	s.publish(ctx, plan)

	return &models.Result{Contact: plan.view, Outcome: plan.outcome}, nil
}

// consolidation carries one request through resolve, decide, write and read.
type consolidation struct {
	req      *models.ConsolidateRequest
	now      time.Time
	cluster  *cluster
	primary  *models.Contact
	outcome  models.Outcome
	created  *models.Contact
	demoted  []int64
	relinked int64
	view     *models.ConsolidatedContact
}

func (s *Service) consolidate(ctx context.Context, req *models.ConsolidateRequest) (*consolidation, error) {
	c := &consolidation{req: req, now: requestcontext.Now(ctx), outcome: models.OutcomeUnchanged}

	cl, err := s.resolveCluster(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cluster = cl

	candidates, err := s.selectPrimaries(ctx, cl)
	if err != nil {
		return nil, err
	}

	switch {
	case len(candidates) == 0:
		if err := s.createPrimary(ctx, c); err != nil {
			return nil, err
		}
	case len(candidates) >= 2 && !cl.isExactDuplicate(req):
		if err := s.merge(ctx, c, candidates); err != nil {
			return nil, err
		}
	default:
		c.primary = candidates[0]
		if shouldCreateSecondary(req, cl, candidates) {
			if err := s.createSecondary(ctx, c); err != nil {
				return nil, err
			}
		}
	}

	view, err := s.aggregate(ctx, c.primary.ID)
	if err != nil {
		return nil, err
	}
	c.view = view
	return c, nil
}

func (s *Service) recordOutcome(c *consolidation) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrementConsolidation(string(c.outcome))
	if c.outcome == models.OutcomeMerged {
		s.metrics.AddContactsMerged(c.relinked)
	}
}

func (s *Service) logOutcome(ctx context.Context, c *consolidation) {
	if c.outcome == models.OutcomeUnchanged {
		s.logger.DebugContext(ctx, "contact consolidated",
			"request_id", requestcontext.RequestID(ctx),
			"outcome", c.outcome,
			"primary_contact_id", c.view.PrimaryContactID,
		)
		return
	}
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"outcome", c.outcome,
		"primary_contact_id", c.view.PrimaryContactID,
		"matched", len(c.cluster.matched),
	}
	if c.outcome == models.OutcomeMerged {
		args = append(args, "demoted_contact_ids", c.demoted, "rows_relinked", c.relinked)
	}
	if c.created != nil {
		args = append(args, "contact_id", c.created.ID)
	}
	s.logger.InfoContext(ctx, "contact consolidated", args...)
}

func translateLockError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for identity lock")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled while waiting for identity lock")
	case errors.Is(err, sentinel.ErrLockHeld), errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity is being updated, retry later")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire identity lock")
	}
}

func isCoded(err error) bool {
	var de *dErrors.Error
	return errors.As(err, &de)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
