package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memberbot/internal/domain"
	"memberbot/internal/messaging"
	"memberbot/internal/metrics"
	"memberbot/internal/repository"
)

var ErrOnboardingNotConfigured = errors.New("onboarding service not configured")

const maxBatchWorkers = 16

// Estados que barre la limpieza de registros abandonados. AwaitingPhone ya es
// el estado de reinicio, asi que no se lista.
var sweepStates = []domain.State{
	domain.StateAwaitingCard,
	domain.StateAwaitingPhoto,
}

// OnboardingService enruta eventos normalizados a la maquina de registro y
// ejecuta lo que decide, serializado por usuario.
type OnboardingService struct {
	logger   *zap.Logger
	members  repository.MemberRepository
	machine  OnboardingMachine
	executor *EffectExecutor
	locker   MemberLocker
	dedup    EventDeduper
	gateways *messaging.Registry
	metrics  *metrics.Metrics
	timeout  time.Duration
	now      func() time.Time
}

type OnboardingDeps struct {
	Members  repository.MemberRepository
	Machine  OnboardingMachine
	Executor *EffectExecutor
	Locker   MemberLocker
	Dedup    EventDeduper
	Gateways *messaging.Registry
	Metrics  *metrics.Metrics
	// Timeout acota las lecturas del store y la consulta de perfil.
	Timeout time.Duration
}

func NewOnboardingService(logger *zap.Logger, deps OnboardingDeps) *OnboardingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Locker == nil {
		deps.Locker = NewMemoryMemberLocker()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 15 * time.Second
	}
	return &OnboardingService{
		logger:   logger,
		members:  deps.Members,
		machine:  deps.Machine,
		executor: deps.Executor,
		locker:   deps.Locker,
		dedup:    deps.Dedup,
		gateways: deps.Gateways,
		metrics:  deps.Metrics,
		timeout:  deps.Timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent procesa un evento completo. Los errores de validacion nunca
// llegan aqui; un error significa que un colaborador fallo.
func (s *OnboardingService) HandleEvent(ctx context.Context, ev domain.Event) error {
	if s == nil || s.members == nil || s.executor == nil {
		return ErrOnboardingNotConfigured
	}
	start := time.Now()
	outcome := "ok"
	defer func() {
		s.metrics.ObserveEvent(string(ev.Platform), ev.Kind.String(), outcome, time.Since(start))
	}()

	if !ev.Handled() {
		outcome = "ignored"
		return nil
	}

	if s.dedup != nil && ev.EventID != "" {
		claimed, err := s.dedup.Claim(ctx, ev.EventID)
		switch {
		case err != nil:
			s.logger.Warn("event dedup unavailable", zap.String("event_id", ev.EventID), zap.Error(err))
		case !claimed:
			outcome = "duplicate"
			s.logger.Debug("duplicate event skipped", zap.String("event_id", ev.EventID))
			return nil
		}
	}

	err := s.process(ctx, ev)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrReplyFailed):
		// El estado ya quedo guardado; un reintento solo repetiria el prompt.
		outcome = "reply_failed"
	default:
		outcome = "failed"
		s.releaseEvent(ev.EventID)
	}
	s.logger.Error("event processing failed",
		zap.String("platform", string(ev.Platform)),
		zap.String("kind", ev.Kind.String()),
		zap.String("user_id", ev.UserID),
		zap.Error(err),
	)
	return err
}

func (s *OnboardingService) process(ctx context.Context, ev domain.Event) error {
	unlock, err := s.locker.Lock(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("lock member: %w", err)
	}
	defer unlock()

	var current *domain.Member
	existing, err := s.loadMember(ctx, ev.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load member: %w", err)
	default:
		current = &existing
	}

	if ev.Kind == domain.EventFollow && ev.DisplayName == "" {
		ev.DisplayName = s.lookupDisplayName(ctx, ev)
	}

	decision := s.machine.Decide(current, ev, s.now())
	if decision.Empty() {
		if current == nil {
			s.logger.Debug("event for unknown member dropped",
				zap.String("user_id", ev.UserID), zap.String("kind", ev.Kind.String()))
		}
		return nil
	}

	_, err = s.executor.Execute(ctx, ev, decision)
	return err
}

// loadMember acota la lectura con el mismo timeout que el resto de los
// colaboradores, para que el lock nunca sobreviva a su lease.
func (s *OnboardingService) loadMember(ctx context.Context, externalUserID string) (domain.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.members.GetByExternalID(ctx, externalUserID)
}

// lookupDisplayName pide el perfil a la plataforma; si falla el nombre queda vacio.
func (s *OnboardingService) lookupDisplayName(ctx context.Context, ev domain.Event) string {
	gw, err := s.gateways.For(ev.Platform)
	if err != nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	profile, err := gw.Profile(ctx, ev.UserID)
	if err != nil {
		s.logger.Warn("profile lookup failed", zap.String("user_id", ev.UserID), zap.Error(err))
		return ""
	}
	return profile.DisplayName
}

func (s *OnboardingService) releaseEvent(eventID string) {
	if s.dedup == nil || eventID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := s.dedup.Release(ctx, eventID); err != nil {
		s.logger.Warn("release event id", zap.String("event_id", eventID), zap.Error(err))
	}
}

// HandleBatch procesa los eventos de un webhook. Cada usuario se atiende en
// orden de llegada; usuarios distintos van en paralelo.
func (s *OnboardingService) HandleBatch(ctx context.Context, events []domain.Event) error {
	order := make([]string, 0, len(events))
	byUser := make(map[string][]domain.Event)
	for _, ev := range events {
		if _, seen := byUser[ev.UserID]; !seen {
			order = append(order, ev.UserID)
		}
		byUser[ev.UserID] = append(byUser[ev.UserID], ev)
	}

	var g errgroup.Group
	g.SetLimit(maxBatchWorkers)
	errs := make([]error, len(order))
	for i, userID := range order {
		i := i
		queue := byUser[userID]
		g.Go(func() error {
			for _, ev := range queue {
				errs[i] = errors.Join(errs[i], s.HandleEvent(ctx, ev))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// SweepStale reinicia los registros sin actividad desde cutoff. Cada miembro
// se relee bajo su lock antes de decidir.
func (s *OnboardingService) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.members == nil || s.executor == nil {
		return 0, ErrOnboardingNotConfigured
	}
	listCtx, cancel := context.WithTimeout(ctx, s.timeout)
	candidates, err := s.members.ListStale(listCtx, sweepStates, cutoff)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list stale members: %w", err)
	}

	reset := 0
	var errs error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return reset, err
		}
		ok, err := s.reclaim(ctx, candidate.ExternalUserID, cutoff)
		if err != nil {
			s.logger.Warn("stale reset failed", zap.String("user_id", candidate.ExternalUserID), zap.Error(err))
			errs = errors.Join(errs, err)
			continue
		}
		if ok {
			reset++
			s.metrics.StaleReset()
		}
	}
	return reset, errs
}

func (s *OnboardingService) reclaim(ctx context.Context, externalUserID string, cutoff time.Time) (bool, error) {
	unlock, err := s.locker.Lock(ctx, externalUserID)
	if err != nil {
		return false, err
	}
	defer unlock()

	member, err := s.loadMember(ctx, externalUserID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	decision, ok := s.machine.Reclaim(member, cutoff)
	if !ok {
		return false, nil
	}
	if _, err := s.executor.Execute(ctx, domain.Event{UserID: externalUserID}, decision); err != nil {
		return false, err
	}
	return true, nil
}
