package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkin-gate/internal/logger"
	"checkin-gate/internal/models"
	"checkin-gate/internal/utils"
)

// DefaultPublishTimeout bounds how long an admission waits on its publishers.
const DefaultPublishTimeout = 2 * time.Second

var (
	ErrMissingCredential = errors.New("missing id or token")
	ErrStorage           = errors.New("storage failure")
)

type GateDBLayer interface {
	FindGuestByID(ctx context.Context, id string) (*models.Guest, error)
	TryAdmit(ctx context.Context, id string, now time.Time) (bool, *models.Guest, error)
	FindByToken(ctx context.Context, token string) (*models.Token, error)
	AdmitWithToken(ctx context.Context, token string, now time.Time) (*models.Guest, error)
	ResetAll(ctx context.Context) (int, error)
	ListGuests(ctx context.Context) ([]models.Guest, error)
	ListTokenExports(ctx context.Context) ([]models.TokenExport, error)
	Stats(ctx context.Context) (models.GateStats, error)
	Snapshot(ctx context.Context) ([]byte, string, error)
}

// Publisher receives events after the corresponding write has committed.
type Publisher interface {
	Publish(ctx context.Context, evt models.GateEvent) error
}

type Recorder interface {
	ObserveAdmission(path string, outcome string, elapsed time.Duration)
	ObserveReset(count int)
}

// GateService decides admissions. Expected outcomes (unknown credential,
// already arrived) are Results; only store failures are errors, and those
// wrap ErrStorage.
type GateService struct {
	DB         GateDBLayer
	Logger     *logger.Logger
	Publishers []Publisher
	Metrics    Recorder
	Now        func() time.Time

	PublishTimeout time.Duration
}

func NewGateService(db GateDBLayer, log *logger.Logger) *GateService {
	return &GateService{
		DB:     db,
		Logger: log,
		Now:    time.Now,

		PublishTimeout: DefaultPublishTimeout,
	}
}

// AdmitByID is the direct-id path: resolve, then one conditional update.
func (s *GateService) AdmitByID(ctx context.Context, id string) (Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{}, ErrMissingCredential
	}
	start := time.Now()

	if _, err := s.DB.FindGuestByID(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.finish(models.PathID, id, notFound(), start), nil
		}
		return Result{}, s.storageError(models.PathID, id, err, start)
	}

	now := s.Now().UTC()
	ok, guest, err := s.DB.TryAdmit(ctx, id, now)
	if err != nil {
		return Result{}, s.storageError(models.PathID, id, err, start)
	}
	if !ok {
		return s.finish(models.PathID, id, denied(guest), start), nil
	}

	res := s.finish(models.PathID, id, granted(guest, now), start)
	s.publish(ctx, models.NewAdmittedEvent(*guest, models.PathID, now))
	return res, nil
}

// PreviewToken is the read-only first step of the QR flow.
func (s *GateService) PreviewToken(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{}, ErrMissingCredential
	}

	tok, err := s.DB.FindByToken(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		return notFound(), nil
	}
	if err != nil {
		return Result{}, s.storageError("preview", utils.MaskToken(token), err, time.Time{})
	}
	if tok.Used || tok.Guest.Arrived {
		return denied(tok.Guest), nil
	}
	return Result{Outcome: Pending, Guest: tok.Guest}, nil
}

// AdmitByToken consumes the token and admits its guest as one unit.
func (s *GateService) AdmitByToken(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{}, ErrMissingCredential
	}
	start := time.Now()
	masked := utils.MaskToken(token)

	tok, err := s.DB.FindByToken(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		return s.finish(models.PathToken, masked, notFound(), start), nil
	}
	if err != nil {
		return Result{}, s.storageError(models.PathToken, masked, err, start)
	}
	// The pre-check saves a write; AdmitWithToken re-validates both flags.
	if tok.Used || tok.Guest.Arrived {
		return s.finish(models.PathToken, masked, denied(tok.Guest), start), nil
	}

	now := s.Now().UTC()
	guest, err := s.DB.AdmitWithToken(ctx, token, now)
	switch {
	case errors.Is(err, models.ErrAlreadyAdmitted):
		return s.finish(models.PathToken, masked, denied(tok.Guest), start), nil
	case errors.Is(err, models.ErrNotFound):
		return s.finish(models.PathToken, masked, notFound(), start), nil
	case err != nil:
		return Result{}, s.storageError(models.PathToken, masked, err, start)
	}

	res := s.finish(models.PathToken, masked, granted(guest, now), start)
	s.publish(ctx, models.NewAdmittedEvent(*guest, models.PathToken, now))
	return res, nil
}

// ResetEvent starts a new lifecycle and returns the number of guest rows cleared.
func (s *GateService) ResetEvent(ctx context.Context) (int, error) {
	count, err := s.DB.ResetAll(ctx)
	if err != nil {
		s.Logger.Error("RESET", fmt.Sprintf("Reset failed: %v", err))
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.Logger.Warn("RESET", fmt.Sprintf("Event reset, %d guests cleared", count))
	if s.Metrics != nil {
		s.Metrics.ObserveReset(count)
	}
	s.publish(ctx, models.NewResetEvent(count, s.Now().UTC()))
	return count, nil
}

func (s *GateService) finish(path, credential string, res Result, start time.Time) Result {
	s.Logger.LogAdmission(path, credential, res.Outcome.String())
	if s.Metrics != nil {
		s.Metrics.ObserveAdmission(path, res.Outcome.String(), time.Since(start))
	}
	return res
}

// storageError logs and wraps a store failure. A zero start skips the
// latency metric.
func (s *GateService) storageError(path, credential string, err error, start time.Time) error {
	s.Logger.Error("ADMISSION", fmt.Sprintf("[%s] %s - storage failure: %v", path, credential, err))
	if s.Metrics != nil && !start.IsZero() {
		s.Metrics.ObserveAdmission(path, "ERROR", time.Since(start))
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// publish runs after commit, detached from the request and bounded by
// PublishTimeout.
func (s *GateService) publish(ctx context.Context, evt models.GateEvent) {
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	for _, p := range s.Publishers {
		if err := p.Publish(ctx, evt); err != nil {
			s.Logger.Warn("EVENTS", fmt.Sprintf("Failed to publish %s: %v", evt.Type, err))
		}
	}
}
