package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/herald-labs/herald/pkg/logger"
	"github.com/herald-labs/herald/pkg/preference"
	"github.com/herald-labs/herald/pkg/quota"
	"github.com/herald-labs/herald/pkg/recipient"
	"github.com/herald-labs/herald/pkg/target"
)

// Registry is the recipient-directory surface the engine needs.
type Registry interface {
	CreateIfNotExists(ctx context.Context, projectID uuid.UUID, in recipient.CreateInput) (*recipient.Recipient, error)
	ListIDs(ctx context.Context, projectID uuid.UUID, afterID string, limit int) ([]string, error)
}

// Resolver answers preference questions for the engine.
type Resolver interface {
	Resolve(ctx context.Context, projectID uuid.UUID, recipientID string, t target.Target) (preference.Resolution, error)
	RuleExistsFor(ctx context.Context, projectID uuid.UUID, t target.Target) (bool, error)
}

// Admitter decides whether one more notification fits under the project
// owner's plan.
type Admitter interface {
	Admit(ctx context.Context, userID uuid.UUID, metric quota.Metric) (bool, error)
}

// SendRequest addresses one send. Exactly one addressing mode applies:
// RecipientID set means a direct send (Target optional; without it the
// notification bypasses preference resolution), RecipientID nil with Target
// set means a broadcast to every recipient of the project.
type SendRequest struct {
	ProjectID   uuid.UUID       `json:"project_id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	RecipientID *string         `json:"recipient_id,omitempty"`
	Target      *target.Target  `json:"target,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// SendResult reports what a send produced: the notification record for a
// direct send (whatever its outcome), or the broadcast for a fan-out.
type SendResult struct {
	Notification *Notification `json:"notification,omitempty"`
	Broadcast    *Broadcast    `json:"broadcast,omitempty"`
}

// Engine orchestrates sends: preference filtering, quota admission,
// persistence, and fan-out.
type Engine struct {
	storage    Storage
	broadcasts BroadcastStorage
	registry   Registry
	prefs      Resolver
	quotas     Admitter
	deliverer  Deliverer
	logger     *slog.Logger
	workers    int
	pageSize   int
	now        func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for the Engine.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = log
	}
}

// WithDeliverer sets the push deliverer for delivered notifications.
func WithDeliverer(d Deliverer) EngineOption {
	return func(e *Engine) {
		if d != nil {
			e.deliverer = d
		}
	}
}

// WithWorkers bounds the number of concurrent fan-out admissions.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithFanOutPageSize sets how many recipient IDs each fan-out page loads.
func WithFanOutPageSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a delivery engine on the given collaborators.
func NewEngine(storage Storage, broadcasts BroadcastStorage, registry Registry, prefs Resolver, quotas Admitter, opts ...EngineOption) *Engine {
	e := &Engine{
		storage:    storage,
		broadcasts: broadcasts,
		registry:   registry,
		prefs:      prefs,
		quotas:     quotas,
		deliverer:  NoopDeliverer{},
		logger:     slog.Default(),
		workers:    8,
		pageSize:   200,
		now:        func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Send validates the request, picks the addressing mode, and runs the send
// to completion. Muted and quota-exceeded admissions are recorded outcomes,
// not errors; only request-shape problems and systemic failures error.
func (e *Engine) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if len(req.Payload) == 0 {
		return nil, errors.Join(ErrInvalidRequest, errors.New("payload is required"))
	}
	if len(req.Payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	switch {
	case req.RecipientID != nil:
		return e.sendDirect(ctx, req)
	case req.Target != nil:
		return e.sendBroadcast(ctx, req)
	default:
		return nil, errors.Join(ErrInvalidRequest, errors.New("either recipient_id or target is required"))
	}
}

func (e *Engine) sendDirect(ctx context.Context, req SendRequest) (*SendResult, error) {
	rid := *req.RecipientID
	if rid == "" {
		return nil, errors.Join(ErrInvalidRequest, errors.New("recipient_id must not be empty"))
	}

	var t target.Target
	if req.Target != nil {
		if err := target.ValidateConcrete(*req.Target); err != nil {
			return nil, errors.Join(ErrInvalidTarget, err)
		}
		t = *req.Target
	}

	// Direct sends may address recipients the project never registered.
	if _, err := e.registry.CreateIfNotExists(ctx, req.ProjectID, recipient.CreateInput{ID: rid}); err != nil {
		return nil, errors.Join(ErrDeliveryFailed, err)
	}

	n := NewNotification(req.ProjectID, rid, t, req.Payload, nil)
	if err := e.storage.Create(ctx, n); err != nil {
		return nil, errors.Join(ErrDeliveryFailed, err)
	}

	outcome, admitErr := e.admit(ctx, req.ProjectID, req.OwnerID, rid, req.Target)
	if outcome == StatusDelivered {
		if err := e.deliverer.Deliver(ctx, n); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "Deliverer rejected notification",
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
			outcome = StatusFailed
		}
	}

	completedAt := e.now()
	if err := e.storage.Finalize(ctx, req.ProjectID, n.ID, outcome, completedAt); err != nil {
		return nil, errors.Join(ErrDeliveryFailed, err)
	}

	n.Status = outcome
	n.CompletedAt = &completedAt
	n.UpdatedAt = completedAt

	e.logger.LogAttrs(ctx, slog.LevelInfo, "Direct send resolved",
		logger.ProjectID(req.ProjectID),
		logger.RecipientID(rid),
		logger.NotificationID(n.ID),
		logger.Status(string(outcome)),
	)

	if admitErr != nil {
		return nil, errors.Join(ErrDeliveryFailed, admitErr)
	}

	return &SendResult{Notification: &n}, nil
}

func (e *Engine) sendBroadcast(ctx context.Context, req SendRequest) (*SendResult, error) {
	t := *req.Target
	if err := target.ValidateBroadcast(t); err != nil {
		return nil, errors.Join(ErrInvalidTarget, err)
	}

	// A broadcast must land on a target some project rule covers; otherwise
	// recipients would get notifications they were never able to opt out of.
	covered, err := e.prefs.RuleExistsFor(ctx, req.ProjectID, t)
	if err != nil {
		return nil, errors.Join(ErrDeliveryFailed, err)
	}
	if !covered {
		return nil, ErrNoMatchingRule
	}

	bc := NewBroadcast(req.ProjectID, t, req.Payload)
	if err := e.broadcasts.Create(ctx, bc); err != nil {
		return nil, errors.Join(ErrDeliveryFailed, err)
	}

	if err := e.fanOut(ctx, req.OwnerID, &bc); err != nil {
		return nil, err
	}

	return &SendResult{Broadcast: &bc}, nil
}

// fanOut walks the project's recipients in stable ID order and admits each
// one concurrently, bounded by the worker limit. Pages keep memory flat no
// matter how large the project is.
func (e *Engine) fanOut(ctx context.Context, ownerID uuid.UUID, bc *Broadcast) error {
	afterID := ""
	for {
		ids, err := e.registry.ListIDs(ctx, bc.ProjectID, afterID, e.pageSize)
		if err != nil {
			return errors.Join(ErrDeliveryFailed, err)
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for _, rid := range ids {
			g.Go(func() error {
				return e.deliverOne(gctx, ownerID, bc, rid)
			})
		}
		if err := g.Wait(); err != nil {
			return errors.Join(ErrDeliveryFailed, err)
		}

		if len(ids) < e.pageSize {
			break
		}
		afterID = ids[len(ids)-1]
	}

	completedAt := e.now()
	if err := e.broadcasts.Complete(ctx, bc.ProjectID, bc.ID, completedAt); err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}
	bc.CompletedAt = &completedAt
	bc.UpdatedAt = completedAt

	e.logger.LogAttrs(ctx, slog.LevelInfo, "Broadcast fan-out completed",
		logger.ProjectID(bc.ProjectID),
		logger.BroadcastID(bc.ID),
	)

	return nil
}

// deliverOne runs the full admission for a single fanned-out recipient.
// Policy outcomes and per-recipient admission errors are recorded on the
// notification; only storage failures propagate and abort the fan-out.
func (e *Engine) deliverOne(ctx context.Context, ownerID uuid.UUID, bc *Broadcast, recipientID string) error {
	first, err := e.broadcasts.MarkProcessed(ctx, bc.ID, recipientID)
	if err != nil {
		return err
	}
	if !first {
		// A resumed fan-out already handled this recipient.
		return nil
	}

	broadcastID := bc.ID
	n := NewNotification(bc.ProjectID, recipientID, bc.Target, bc.Payload, &broadcastID)
	if err := e.storage.Create(ctx, n); err != nil {
		return err
	}

	outcome, admitErr := e.admit(ctx, bc.ProjectID, ownerID, recipientID, &bc.Target)
	if admitErr != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "Broadcast admission failed for recipient",
			logger.BroadcastID(bc.ID),
			logger.RecipientID(recipientID),
			logger.Error(admitErr),
		)
		outcome = StatusFailed
	}

	if outcome == StatusDelivered {
		if err := e.deliverer.Deliver(ctx, n); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "Deliverer rejected notification",
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
			outcome = StatusFailed
		}
	}

	return e.storage.Finalize(ctx, bc.ProjectID, n.ID, outcome, e.now())
}

// admit decides the terminal outcome for one recipient: preference
// resolution first, then quota. A nil target skips resolution entirely.
func (e *Engine) admit(ctx context.Context, projectID, ownerID uuid.UUID, recipientID string, t *target.Target) (Status, error) {
	if t != nil {
		res, err := e.prefs.Resolve(ctx, projectID, recipientID, *t)
		if err != nil {
			return StatusFailed, err
		}
		if !res.Enabled {
			return StatusMuted, nil
		}
	}

	admitted, err := e.quotas.Admit(ctx, ownerID, quota.MetricNotifications)
	if err != nil {
		return StatusFailed, err
	}
	if !admitted {
		return StatusQuotaExceeded, nil
	}

	return StatusDelivered, nil
}
