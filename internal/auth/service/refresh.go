package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"joblinker/internal/auth/models"
	"joblinker/internal/platform/metrics"
	"joblinker/pkg/platform/cookie"
	"joblinker/pkg/platform/sentinel"
)

// Refresh exchanges the refresh cookie for a new access token.
//
// Concurrent callers share a single backend call. On success the record holds
// the new token with IsRefreshed set; on failure the record is cleared and
// the returned error wraps sentinel.ErrRefreshFailed. Either way IsRefreshing
// ends false. A login or verification that lands while the call is in flight
// wins: the outcome is then dropped and the newer session kept.
func (s *Service) Refresh(ctx context.Context) (models.Session, error) {
	// The shared flight must outlive any single caller's cancellation;
	// RefreshTimeout bounds it instead.
	leader := false
	ch := s.refreshes.DoChan(refreshKey, func() (any, error) {
		leader = true
		return s.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if !leader {
			s.metrics.IncrementRefreshCoalesced()
		}
		session, _ := res.Val.(models.Session)
		return session, res.Err
	case <-ctx.Done():
		return s.sessions.CurrentUser(), ctx.Err()
	}
}

func (s *Service) refresh(ctx context.Context) (models.Session, error) {
	// Only the flight leader marks and settles the record, so a caller joining
	// a flight that is finishing cannot leave IsRefreshing stuck.
	from := s.sessions.SetCredentials(models.Refreshing()).AccessToken

	ctx, span := s.tracer.Start(ctx, "session.refresh")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.RefreshTimeout)
	defer cancel()

	csrf, ok := cookie.CSRFToken(s.cookies)
	if !ok {
		return s.failRefresh(ctx, from, metrics.OutcomeNoCSRF, sentinel.ErrNoCSRFToken)
	}

	creds, err := s.backend.Refresh(ctx, csrf)
	if err != nil {
		outcome := metrics.OutcomeFailure
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		return s.failRefresh(ctx, from, outcome, err)
	}

	update := models.FromCredentials(*creds, true)
	if creds.Role == "" && s.sessions.CurrentUser().Role == "" {
		// the refresh payload carries only the token; the role comes from the profile
		profile, err := s.backend.Me(ctx, creds.AccessToken())
		if err != nil {
			s.logger.WarnContext(ctx, "profile lookup after refresh failed", "error", err)
		} else {
			if profile.Role != "" {
				update.Role = &profile.Role
			}
			if profile.Name != "" {
				update.Name = &profile.Name
			}
		}
	}

	s.metrics.ObserveRefresh(metrics.OutcomeSuccess)
	span.SetAttributes(attribute.String("session.refresh.outcome", metrics.OutcomeSuccess))
	current, applied := s.sessions.SetCredentialsIf(from, update)
	s.logger.DebugContext(ctx, "session refreshed", "session_kept", !applied)
	return current, nil
}

func (s *Service) failRefresh(ctx context.Context, from, outcome string, cause error) (models.Session, error) {
	current, cleared := s.sessions.ClearCredentialsIf(from)
	s.metrics.ObserveRefresh(outcome)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("session.refresh.outcome", outcome))
	span.RecordError(cause)
	span.SetStatus(codes.Error, outcome)

	s.logger.InfoContext(ctx, "session refresh failed",
		"outcome", outcome,
		"error", cause,
		"session_kept", !cleared,
	)
	return current, fmt.Errorf("%w: %w", sentinel.ErrRefreshFailed, cause)
}
