package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/infra/logger"
	"github.com/arklim/otp-auth-service/internal/repository"
)

const defaultCommitWindow = 2 * time.Minute

// RegistrationConfig tunes the challenge lifecycle.
type RegistrationConfig struct {
	// CommitWindow is how long a matched challenge stays available for commit.
	CommitWindow time.Duration
	// MaxAttempts bounds mismatches per challenge. Zero means unlimited.
	MaxAttempts int
}

// RequestOTPInput captures the registration form.
type RequestOTPInput struct {
	Email    string
	Username string
	Password string
}

// Challenge identifies a pending registration to the client.
type Challenge struct {
	ID        string
	ExpiresAt time.Time
}

// CompleteRegistrationInput commits a challenge, optionally verifying the code first.
type CompleteRegistrationInput struct {
	ChallengeID string
	OTP         string
	Email       string
}

// RegistrationService drives the OTP-verified registration flow.
type RegistrationService struct {
	users      port.UserRepository
	challenges port.ChallengeStore
	hasher     port.PasswordHasher
	issuer     *OTPIssuer
	events     port.EventPublisher
	metrics    Metrics
	cfg        RegistrationConfig
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	users port.UserRepository,
	challenges port.ChallengeStore,
	hasher port.PasswordHasher,
	issuer *OTPIssuer,
	events port.EventPublisher,
	metrics Metrics,
	cfg RegistrationConfig,
	logger *zap.Logger,
) *RegistrationService {
	if cfg.CommitWindow <= 0 {
		cfg.CommitWindow = defaultCommitWindow
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RegistrationService{
		users:      users,
		challenges: challenges,
		hasher:     hasher,
		issuer:     issuer,
		events:     events,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// RequestOTP validates the form, hashes the password, sends a code and stores
// the pending registration. Nothing is stored when delivery fails.
func (s *RegistrationService) RequestOTP(ctx context.Context, in RequestOTPInput) (Challenge, error) {
	ctx, span := tracer().Start(ctx, "RegistrationService.RequestOTP")
	defer span.End()

	email, err := requireField("email", in.Email)
	if err != nil {
		return Challenge{}, err
	}
	username, err := requireField("username", in.Username)
	if err != nil {
		return Challenge{}, err
	}
	if _, err := requireField("password", in.Password); err != nil {
		return Challenge{}, err
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Challenge{}, fmt.Errorf("hash password: %w", err)
	}

	code, expiresAt, err := s.issuer.Issue(ctx, email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "otp delivery failed")
		return Challenge{}, err
	}
	s.metrics.ObserveOTPIssued()

	pending := domain.PendingRegistration{
		ChallengeID:  s.newID(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Code:         code,
		State:        domain.ChallengeAwaitingOTP,
		IssuedAt:     expiresAt.Add(-s.issuer.TTL()),
		ExpiresAt:    expiresAt,
	}

	if err := s.challenges.Save(ctx, pending); err != nil {
		s.logger.Error("store challenge failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		return Challenge{}, fmt.Errorf("%w: store challenge: %v", ErrDependencyUnavailable, err)
	}

	span.SetAttributes(attribute.String("challenge.id", pending.ChallengeID))
	s.logger.Info("otp challenge issued",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("challenge_id", logger.MaskID(pending.ChallengeID)),
		zap.Time("expires_at", expiresAt),
	)

	return Challenge{ID: pending.ChallengeID, ExpiresAt: expiresAt}, nil
}

// VerifyOTP checks the candidate code server side. On match the challenge
// moves to pending_commit and the returned deadline bounds the commit.
func (s *RegistrationService) VerifyOTP(ctx context.Context, challengeID, candidate string) (time.Time, error) {
	ctx, span := tracer().Start(ctx, "RegistrationService.VerifyOTP")
	defer span.End()

	id, err := requireField("challengeId", challengeID)
	if err != nil {
		return time.Time{}, err
	}
	code, err := requireField("otp", candidate)
	if err != nil {
		return time.Time{}, err
	}

	pending, err := s.loadChallenge(ctx, id)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now()
	if pending.Expired(now) {
		s.discard(ctx, id)
		s.metrics.ObserveVerification(OutcomeExpired)
		return time.Time{}, ErrOTPExpired
	}

	if pending.State == domain.ChallengePendingCommit {
		return time.Time{}, ErrChallengeUsed
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(pending.Code)) != 1 {
		return time.Time{}, s.recordMismatch(ctx, id)
	}

	deadline := now.Add(s.cfg.CommitWindow)
	if err := s.challenges.MarkVerified(ctx, id, deadline); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrChallengeNotFound
		}
		return time.Time{}, fmt.Errorf("%w: mark challenge verified: %v", ErrDependencyUnavailable, err)
	}

	s.metrics.ObserveVerification(OutcomeMatched)
	return deadline, nil
}

func (s *RegistrationService) recordMismatch(ctx context.Context, id string) error {
	attempts, err := s.challenges.IncrementAttempts(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("%w: record attempt: %v", ErrDependencyUnavailable, err)
	}

	if s.cfg.MaxAttempts > 0 && attempts >= s.cfg.MaxAttempts {
		s.discard(ctx, id)
		s.metrics.ObserveVerification(OutcomeExhausted)
		return ErrTooManyAttempts
	}

	s.metrics.ObserveVerification(OutcomeMismatch)
	return ErrOTPMismatch
}

// CompleteRegistration consumes a verified challenge and commits its
// server-held registration. A supplied code is verified first.
func (s *RegistrationService) CompleteRegistration(ctx context.Context, in CompleteRegistrationInput) (domain.CommitResult, error) {
	ctx, span := tracer().Start(ctx, "RegistrationService.CompleteRegistration")
	defer span.End()

	id, err := requireField("challengeId", in.ChallengeID)
	if err != nil {
		return domain.CommitResult{}, err
	}

	if strings.TrimSpace(in.OTP) != "" {
		if _, err := s.VerifyOTP(ctx, id, in.OTP); err != nil && !errors.Is(err, ErrChallengeUsed) {
			return domain.CommitResult{}, err
		}
	}

	pending, err := s.loadChallenge(ctx, id)
	if err != nil {
		return domain.CommitResult{}, err
	}
	if err := s.checkCommittable(pending, in.Email); err != nil {
		if errors.Is(err, ErrOTPExpired) {
			s.discard(ctx, id)
		}
		return domain.CommitResult{}, err
	}

	consumed, err := s.challenges.Consume(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.CommitResult{}, ErrChallengeNotFound
		}
		return domain.CommitResult{}, fmt.Errorf("%w: consume challenge: %v", ErrDependencyUnavailable, err)
	}
	if err := s.checkCommittable(consumed, in.Email); err != nil {
		return domain.CommitResult{}, err
	}

	return s.Commit(ctx, consumed.Email, consumed.Username, consumed.PasswordHash)
}

func (s *RegistrationService) checkCommittable(pending *domain.PendingRegistration, email string) error {
	if pending.Expired(s.now()) {
		return ErrOTPExpired
	}
	if pending.State != domain.ChallengePendingCommit {
		return ErrChallengeNotVerified
	}
	if email = strings.TrimSpace(email); email != "" && email != pending.Email {
		return fmt.Errorf("%w: email does not match challenge", ErrValidation)
	}
	return nil
}

// Commit persists a verified registration. An existing record only has its
// lastVerifiedAt advanced; username and hash are left as stored.
func (s *RegistrationService) Commit(ctx context.Context, email, username, passwordHash string) (domain.CommitResult, error) {
	ctx, span := tracer().Start(ctx, "RegistrationService.Commit")
	defer span.End()

	email, err := requireField("email", email)
	if err != nil {
		return domain.CommitResult{}, err
	}
	username, err = requireField("username", username)
	if err != nil {
		return domain.CommitResult{}, err
	}
	if _, err := requireField("passwordHash", passwordHash); err != nil {
		return domain.CommitResult{}, err
	}

	now := s.now()

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.reverify(ctx, *existing, now)
	case !errors.Is(err, repository.ErrNotFound):
		s.metrics.ObserveCommit(OutcomeError)
		return domain.CommitResult{}, fmt.Errorf("%w: lookup user: %v", ErrDependencyUnavailable, err)
	}

	user := domain.User{
		Email:          email,
		Username:       username,
		PasswordHash:   passwordHash,
		CreatedAt:      now,
		LastVerifiedAt: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.ObserveCommit(OutcomeConflict)
			return domain.CommitResult{}, ErrConflict
		}
		s.metrics.ObserveCommit(OutcomeError)
		return domain.CommitResult{}, fmt.Errorf("%w: create user: %v", ErrDependencyUnavailable, err)
	}

	s.metrics.ObserveCommit(OutcomeCreated)
	s.logger.Info("user registered", zap.String("email", logger.MaskEmail(email)))

	if s.events != nil {
		if err := s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			Email:        email,
			Username:     username,
			RegisteredAt: now,
		}); err != nil {
			s.logger.Warn("publish user registered event failed", zap.Error(err))
		}
	}

	return domain.CommitResult{User: user.Sanitized(), Created: true}, nil
}

func (s *RegistrationService) reverify(ctx context.Context, existing domain.User, now time.Time) (domain.CommitResult, error) {
	if err := s.users.TouchVerified(ctx, existing.Email, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveCommit(OutcomeConflict)
			return domain.CommitResult{}, ErrConflict
		}
		s.metrics.ObserveCommit(OutcomeError)
		return domain.CommitResult{}, fmt.Errorf("%w: touch user: %v", ErrDependencyUnavailable, err)
	}

	existing.LastVerifiedAt = now
	s.metrics.ObserveCommit(OutcomeExisting)
	s.logger.Info("user reverified", zap.String("email", logger.MaskEmail(existing.Email)))

	if s.events != nil {
		if err := s.events.PublishUserReverified(ctx, domain.UserReverifiedEvent{
			EventID:    uuid.NewString(),
			Email:      existing.Email,
			VerifiedAt: now,
		}); err != nil {
			s.logger.Warn("publish user reverified event failed", zap.Error(err))
		}
	}

	return domain.CommitResult{User: existing.Sanitized(), Created: false}, nil
}

func (s *RegistrationService) loadChallenge(ctx context.Context, id string) (*domain.PendingRegistration, error) {
	pending, err := s.challenges.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: load challenge: %v", ErrDependencyUnavailable, err)
	}
	return pending, nil
}

// discard drops a failed challenge so its code can never be used again.
func (s *RegistrationService) discard(ctx context.Context, id string) {
	if err := s.challenges.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("discard challenge failed", zap.String("challenge_id", logger.MaskID(id)), zap.Error(err))
	}
}
