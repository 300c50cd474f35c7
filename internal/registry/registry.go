package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
)

// Store persists servers.
type Store interface {
	List(ctx context.Context) ([]Server, error)
	Create(ctx context.Context, s Server) error
	Delete(ctx context.Context, id string) error
}

// Registry validates, instruments and stores servers.
type Registry struct {
	store   Store
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a Registry on store. metrics and logger may be nil.
func New(store Store, metrics *instrumentation.Metrics, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:   store,
		metrics: metrics,
		logger:  logging.WithComponent(logger, "registry"),
		now:     time.Now,
	}
}

// List returns every registered server, oldest first.
func (r *Registry) List(ctx context.Context) ([]Server, error) {
	servers, err := r.store.List(ctx)
	r.record(ctx, instrumentation.OperationList, err)
	if err != nil {
		return nil, err
	}
	if servers == nil {
		servers = []Server{}
	}
	return servers, nil
}

// Create registers n for sessionID.
func (r *Registry) Create(ctx context.Context, sessionID string, n NewServer) (*Server, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	s := Server{
		ID:        uuid.NewString(),
		Name:      n.Name,
		Transport: n.Transport,
		Command:   n.Command,
		Args:      n.Args,
		URL:       n.URL,
		SessionID: sessionID,
		LastUsed:  now,
		CreatedAt: now,
	}
	err := r.store.Create(ctx, s)
	r.record(ctx, instrumentation.OperationCreate, err)
	if err != nil {
		return nil, err
	}
	r.logger.Info("server registered", slog.String("id", s.ID), slog.String("transport", string(s.Transport)))
	return &s, nil
}

// Delete removes the server with id. Unknown ids return ErrNotFound.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	err := r.store.Delete(ctx, id)
	r.record(ctx, instrumentation.OperationDelete, err)
	return err
}

func (r *Registry) record(ctx context.Context, op string, err error) {
	status := instrumentation.StatusSuccess
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = instrumentation.StatusError
		r.logger.Error("registry operation failed", logging.Operation(op), logging.Err(err))
	}
	r.metrics.RecordRegistryOperation(ctx, op, status)
}
