package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/repository"
)

const (
	defaultChallengePrefix = "auth:challenge"
	defaultRetention       = time.Minute
	maxWatchRetries        = 3

	fieldEmail        = "email"
	fieldUsername     = "username"
	fieldPasswordHash = "password_hash"
	fieldCode         = "code"
	fieldState        = "state"
	fieldAttempts     = "attempts"
	fieldIssuedAt     = "issued_at"
	fieldExpiresAt    = "expires_at"
)

// ChallengeStore persists pending registrations as Redis hashes. Keys outlive
// the deadline by the retention period so callers can tell an expired
// challenge from an unknown one.
type ChallengeStore struct {
	client    *red.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewChallengeStore constructs a Redis-backed challenge store.
func NewChallengeStore(client *red.Client, keyPrefix string, retention time.Duration) *ChallengeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	if retention < 0 {
		retention = defaultRetention
	}

	return &ChallengeStore{
		client:    client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *ChallengeStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Save stores the pending registration with a TTL derived from its deadline.
func (s *ChallengeStore) Save(ctx context.Context, pending domain.PendingRegistration) error {
	key := s.key(pending.ChallengeID)
	switch {
	case key == "":
		return errors.New("challenge id is required")
	case pending.ExpiresAt.IsZero():
		return errors.New("expiry is required")
	}

	ttl := s.ttl(pending.ExpiresAt)
	if ttl <= 0 {
		return errors.New("challenge already expired")
	}

	state := pending.State
	if state == "" {
		state = domain.ChallengeAwaitingOTP
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldEmail:        pending.Email,
		fieldUsername:     pending.Username,
		fieldPasswordHash: pending.PasswordHash,
		fieldCode:         pending.Code,
		fieldState:        string(state),
		fieldAttempts:     strconv.Itoa(pending.Attempts),
		fieldIssuedAt:     formatNano(pending.IssuedAt),
		fieldExpiresAt:    formatNano(pending.ExpiresAt),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store challenge: %w", err)
	}

	return nil
}

// Get fetches the pending registration for the challenge id.
func (s *ChallengeStore) Get(ctx context.Context, challengeID string) (*domain.PendingRegistration, error) {
	key := s.key(challengeID)
	if key == "" {
		return nil, errors.New("challenge id is required")
	}

	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}

	return decodeChallenge(challengeID, values)
}

// IncrementAttempts bumps the mismatch counter and returns the new value.
// The key is watched, so a challenge removed concurrently is never recreated.
func (s *ChallengeStore) IncrementAttempts(ctx context.Context, challengeID string) (int, error) {
	key := s.key(challengeID)
	if key == "" {
		return 0, errors.New("challenge id is required")
	}

	var count int64
	err := s.watch(ctx, key, func(tx *red.Tx) error {
		current, err := readChallenge(ctx, tx, key, challengeID)
		if err != nil {
			return err
		}

		var incr *red.IntCmd
		if _, err := tx.TxPipelined(ctx, func(pipe red.Pipeliner) error {
			incr = pipe.HIncrBy(ctx, key, fieldAttempts, 1)
			if ttl := s.ttl(current.ExpiresAt); ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		}); err != nil {
			return err
		}

		count = incr.Val()
		return nil
	})
	if err != nil {
		return 0, wrapUpdateErr("redis hincrby challenge attempts", err)
	}

	return int(count), nil
}

// MarkVerified moves the challenge to pending_commit and resets its deadline.
func (s *ChallengeStore) MarkVerified(ctx context.Context, challengeID string, expiresAt time.Time) error {
	key := s.key(challengeID)
	if key == "" {
		return errors.New("challenge id is required")
	}

	ttl := s.ttl(expiresAt)
	if ttl <= 0 {
		return errors.New("new deadline already passed")
	}

	err := s.watch(ctx, key, func(tx *red.Tx) error {
		if _, err := readChallenge(ctx, tx, key, challengeID); err != nil {
			return err
		}

		_, err := tx.TxPipelined(ctx, func(pipe red.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]any{
				fieldState:     string(domain.ChallengePendingCommit),
				fieldExpiresAt: formatNano(expiresAt),
			})
			pipe.Expire(ctx, key, ttl)
			return nil
		})
		return err
	})
	if err != nil {
		return wrapUpdateErr("redis mark challenge verified", err)
	}

	return nil
}

// watch runs fn with key under WATCH, retrying when another client touched the key first.
func (s *ChallengeStore) watch(ctx context.Context, key string, fn func(*red.Tx) error) error {
	var err error
	for range maxWatchRetries {
		err = s.client.Watch(ctx, fn, key)
		if !errors.Is(err, red.TxFailedErr) {
			return err
		}
	}
	return err
}

func readChallenge(ctx context.Context, tx *red.Tx, key, challengeID string) (*domain.PendingRegistration, error) {
	values, err := tx.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}
	return decodeChallenge(challengeID, values)
}

func wrapUpdateErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Consume reads and deletes the challenge inside one MULTI/EXEC block, so at
// most one caller observes the record.
func (s *ChallengeStore) Consume(ctx context.Context, challengeID string) (*domain.PendingRegistration, error) {
	key := s.key(challengeID)
	if key == "" {
		return nil, errors.New("challenge id is required")
	}

	pipe := s.client.TxPipeline()
	fetch := pipe.HGetAll(ctx, key)
	pipe.Del(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis consume challenge: %w", err)
	}

	return decodeChallenge(challengeID, fetch.Val())
}

// Delete removes the challenge.
func (s *ChallengeStore) Delete(ctx context.Context, challengeID string) error {
	key := s.key(challengeID)
	if key == "" {
		return errors.New("challenge id is required")
	}

	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (s *ChallengeStore) ttl(expiresAt time.Time) time.Duration {
	return expiresAt.Sub(s.now()) + s.retention
}

func (s *ChallengeStore) key(challengeID string) string {
	id := strings.TrimSpace(challengeID)
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func decodeChallenge(challengeID string, values map[string]string) (*domain.PendingRegistration, error) {
	if len(values) == 0 || strings.TrimSpace(values[fieldCode]) == "" {
		return nil, repository.ErrNotFound
	}

	issuedAt, err := parseNano(values[fieldIssuedAt])
	if err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}

	expiresAt, err := parseNano(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.PendingRegistration{
		ChallengeID:  strings.TrimSpace(challengeID),
		Email:        values[fieldEmail],
		Username:     values[fieldUsername],
		PasswordHash: values[fieldPasswordHash],
		Code:         values[fieldCode],
		State:        domain.ChallengeState(values[fieldState]),
		Attempts:     attempts,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
	}, nil
}

func formatNano(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseNano(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, v).UTC(), nil
}

var _ port.ChallengeStore = (*ChallengeStore)(nil)
