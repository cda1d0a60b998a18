package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedCodes struct {
	codes []string
	calls int
	err   error
}

func (f *fixedCodes) Generate() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	code := f.codes[f.calls%len(f.codes)]
	f.calls++
	return code, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []port.OTPMessage
	err   error
	calls int
}

func (n *fakeNotifier) SendOTP(_ context.Context, msg port.OTPMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

// prefixHasher is a reversible stand-in for argon2 to keep tests fast.
type prefixHasher struct {
	hashCalls int
}

func (h *prefixHasher) Hash(password string) (string, error) {
	h.hashCalls++
	return "hashed:" + password, nil
}

func (h *prefixHasher) Verify(password, encoded string) (bool, error) {
	return strings.TrimPrefix(encoded, "hashed:") == password && strings.HasPrefix(encoded, "hashed:"), nil
}

type recordingEvents struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	reverified []domain.UserReverifiedEvent
	loggedIn   []domain.UserLoggedInEvent
	deleted    []domain.UserDeletedEvent
}

func (r *recordingEvents) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, e)
	return nil
}

func (r *recordingEvents) PublishUserReverified(_ context.Context, e domain.UserReverifiedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reverified = append(r.reverified, e)
	return nil
}

func (r *recordingEvents) PublishUserLoggedIn(_ context.Context, e domain.UserLoggedInEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggedIn = append(r.loggedIn, e)
	return nil
}

func (r *recordingEvents) PublishUserDeleted(_ context.Context, e domain.UserDeletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, e)
	return nil
}

// mockUserRepository returns canned results and counts calls.
type mockUserRepository struct {
	getResult *domain.User
	getErr    error
	getCalls  int

	createErr   error
	createCalls int
	createdUser domain.User

	touchVerifiedErr   error
	touchVerifiedCalls int

	touchLoginErr   error
	touchLoginCalls int

	listResult []domain.User
	listErr    error

	deleteErr   error
	deleteCalls int
}

func (m *mockUserRepository) Create(_ context.Context, user domain.User) error {
	m.createCalls++
	m.createdUser = user
	return m.createErr
}

func (m *mockUserRepository) GetByEmail(context.Context, string) (*domain.User, error) {
	m.getCalls++
	if m.getResult != nil {
		copy := *m.getResult
		return &copy, m.getErr
	}
	return nil, m.getErr
}

func (m *mockUserRepository) TouchVerified(context.Context, string, time.Time) error {
	m.touchVerifiedCalls++
	return m.touchVerifiedErr
}

func (m *mockUserRepository) TouchLogin(context.Context, string, time.Time) error {
	m.touchLoginCalls++
	return m.touchLoginErr
}

func (m *mockUserRepository) List(context.Context) ([]domain.User, error) {
	return m.listResult, m.listErr
}

func (m *mockUserRepository) DeleteByEmail(context.Context, string) error {
	m.deleteCalls++
	return m.deleteErr
}

type countingMetrics struct {
	mu            sync.Mutex
	issued        int
	verifications map[string]int
	commits       map[string]int
	logins        map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		verifications: map[string]int{},
		commits:       map[string]int{},
		logins:        map[string]int{},
	}
}

func (m *countingMetrics) ObserveOTPIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
}

func (m *countingMetrics) ObserveVerification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[outcome]++
}

func (m *countingMetrics) ObserveCommit(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits[outcome]++
}

func (m *countingMetrics) ObserveLogin(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[outcome]++
}
