package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/usecase"
)

type fakeRegistration struct {
	challenge usecase.Challenge
	deadline  time.Time
	result    domain.CommitResult
	err       error

	lastRequest usecase.RequestOTPInput
	lastCommit  usecase.CompleteRegistrationInput
}

func (f *fakeRegistration) RequestOTP(_ context.Context, in usecase.RequestOTPInput) (usecase.Challenge, error) {
	f.lastRequest = in
	return f.challenge, f.err
}

func (f *fakeRegistration) VerifyOTP(_ context.Context, _, _ string) (time.Time, error) {
	return f.deadline, f.err
}

func (f *fakeRegistration) CompleteRegistration(_ context.Context, in usecase.CompleteRegistrationInput) (domain.CommitResult, error) {
	f.lastCommit = in
	return f.result, f.err
}

type fakeAuth struct {
	user domain.User
	err  error
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (domain.User, error) {
	return f.user, f.err
}

type fakeUsers struct {
	users   []domain.User
	err     error
	deleted string
}

func (f *fakeUsers) ListUsers(context.Context) ([]domain.User, error) {
	return f.users, f.err
}

func (f *fakeUsers) DeleteUser(_ context.Context, email string) error {
	f.deleted = email
	return f.err
}

func newTestRouter(register func(r *gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("trace_id", "trace-test")
		c.Next()
	})
	register(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestRequestOTPReturnsChallenge(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 0, 20, 0, time.UTC)
	flow := &fakeRegistration{challenge: usecase.Challenge{ID: "ch-1", ExpiresAt: expires}}
	r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(flow).RegisterRoutes(r) })

	rr := doJSON(t, r, http.MethodPost, "/request-otp", RequestOTPRequest{Email: "a@x.io", Username: "alice", Password: "pw"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := decode[RequestOTPResponse](t, rr)
	if !body.Success || body.ChallengeID != "ch-1" || body.ExpiresAt != "2026-03-01T12:00:20.000Z" {
		t.Fatalf("unexpected response %+v", body)
	}
	if flow.lastRequest.Username != "alice" || flow.lastRequest.Password != "pw" {
		t.Fatalf("form not forwarded: %+v", flow.lastRequest)
	}
}

func TestRequestOTPErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: fmt.Errorf("%w: email is required", usecase.ErrValidation), want: http.StatusBadRequest},
		{name: "delivery", err: usecase.ErrDeliveryFailed, want: http.StatusInternalServerError},
		{name: "store", err: usecase.ErrDependencyUnavailable, want: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := &fakeRegistration{err: tc.err}
			r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(flow).RegisterRoutes(r) })

			rr := doJSON(t, r, http.MethodPost, "/request-otp", RequestOTPRequest{Email: "a@x.io", Username: "alice", Password: "pw"})
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			body := decode[ErrorResponse](t, rr)
			if body.Success || body.Message == "" || body.TraceID != "trace-test" {
				t.Fatalf("unexpected envelope %+v", body)
			}
			if tc.name == "unknown" && body.Message == "boom" {
				t.Fatalf("internal error text leaked")
			}
		})
	}
}

func TestRequestOTPRejectsMalformedJSON(t *testing.T) {
	r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(&fakeRegistration{}).RegisterRoutes(r) })

	rr := doJSON(t, r, http.MethodPost, "/request-otp", "{not json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestBindingRulesRejectBeforeUsecase(t *testing.T) {
	cases := []struct {
		name string
		path string
		body any
		want string
	}{
		{
			name: "request-otp missing username",
			path: "/request-otp",
			body: map[string]string{"email": "a@x.io", "password": "pw"},
			want: "Email, username, and password are required.",
		},
		{
			name: "request-otp malformed email",
			path: "/request-otp",
			body: map[string]string{"email": "not-an-email", "username": "alice", "password": "pw"},
			want: "Email, username, and password are required.",
		},
		{
			name: "request-otp display name email",
			path: "/request-otp",
			body: map[string]string{"email": "Alice <a@x.io>", "username": "alice", "password": "pw"},
			want: "Email, username, and password are required.",
		},
		{
			name: "verify-otp missing challenge",
			path: "/verify-otp",
			body: map[string]string{"otp": "aB3dE9"},
			want: "challengeId is required",
		},
		{
			name: "commit missing challenge",
			path: "/register-and-verify",
			body: map[string]string{"email": "a@x.io"},
			want: "challengeId is required",
		},
		{
			name: "commit malformed email",
			path: "/register-and-verify",
			body: map[string]string{"challengeId": "ch-1", "email": "nope"},
			want: "email is malformed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := &fakeRegistration{}
			r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(flow).RegisterRoutes(r) })

			rr := doJSON(t, r, http.MethodPost, tc.path, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			body := decode[ErrorResponse](t, rr)
			if body.Message != tc.want || body.TraceID != "trace-test" {
				t.Fatalf("unexpected envelope %+v", body)
			}
			if flow.lastRequest != (usecase.RequestOTPInput{}) || flow.lastCommit != (usecase.CompleteRegistrationInput{}) {
				t.Fatalf("usecase must not be reached")
			}
		})
	}
}

func TestLoginBindingRules(t *testing.T) {
	for name, body := range map[string]map[string]string{
		"missing password": {"email": "a@x.io"},
		"malformed email":  {"email": "alice", "password": "pw"},
	} {
		t.Run(name, func(t *testing.T) {
			r := newTestRouter(func(r *gin.Engine) { NewAuthHandler(&fakeAuth{}).RegisterRoutes(r) })

			rr := doJSON(t, r, http.MethodPost, "/login", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if got := decode[ErrorResponse](t, rr).Message; got != "Email and password are required." {
				t.Fatalf("unexpected message %q", got)
			}
		})
	}
}

func TestVerifyOTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: nil, want: http.StatusOK},
		{err: fmt.Errorf("%w: otp is required", usecase.ErrValidation), want: http.StatusBadRequest},
		{err: usecase.ErrOTPMismatch, want: http.StatusBadRequest},
		{err: usecase.ErrChallengeNotFound, want: http.StatusNotFound},
		{err: usecase.ErrChallengeUsed, want: http.StatusConflict},
		{err: usecase.ErrOTPExpired, want: http.StatusGone},
		{err: usecase.ErrTooManyAttempts, want: http.StatusGone},
	}

	for _, tc := range cases {
		name := "ok"
		if tc.err != nil {
			name = tc.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			flow := &fakeRegistration{deadline: time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC), err: tc.err}
			r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(flow).RegisterRoutes(r) })

			rr := doJSON(t, r, http.MethodPost, "/verify-otp", VerifyOTPRequest{ChallengeID: "ch-1", OTP: "aB3dE9"})
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestVerifyOTPValidationDetail(t *testing.T) {
	flow := &fakeRegistration{err: fmt.Errorf("%w: otp is required", usecase.ErrValidation)}
	r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(flow).RegisterRoutes(r) })

	rr := doJSON(t, r, http.MethodPost, "/verify-otp", VerifyOTPRequest{ChallengeID: "ch-1"})
	body := decode[ErrorResponse](t, rr)
	if body.Message != "otp is required" {
		t.Fatalf("expected validation detail, got %q", body.Message)
	}
}

func TestRegisterAndVerify(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		flow := &fakeRegistration{result: domain.CommitResult{Created: true}}
		r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(flow).RegisterRoutes(r) })

		rr := doJSON(t, r, http.MethodPost, "/register-and-verify", RegisterAndVerifyRequest{ChallengeID: "ch-1", OTP: "aB3dE9", Email: "a@x.io"})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
		body := decode[RegisterAndVerifyResponse](t, rr)
		if !body.Success || body.UserExists {
			t.Fatalf("unexpected response %+v", body)
		}
		if flow.lastCommit.ChallengeID != "ch-1" || flow.lastCommit.Email != "a@x.io" {
			t.Fatalf("commit input not forwarded: %+v", flow.lastCommit)
		}
	})

	t.Run("existing", func(t *testing.T) {
		flow := &fakeRegistration{result: domain.CommitResult{Created: false}}
		r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(flow).RegisterRoutes(r) })

		rr := doJSON(t, r, http.MethodPost, "/register-and-verify", RegisterAndVerifyRequest{ChallengeID: "ch-1"})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if body := decode[RegisterAndVerifyResponse](t, rr); !body.UserExists {
			t.Fatalf("expected userExists")
		}
	})

	errCases := []struct {
		err  error
		want int
	}{
		{err: usecase.ErrChallengeNotVerified, want: http.StatusBadRequest},
		{err: usecase.ErrChallengeNotFound, want: http.StatusNotFound},
		{err: usecase.ErrConflict, want: http.StatusConflict},
		{err: usecase.ErrOTPExpired, want: http.StatusGone},
		{err: usecase.ErrDependencyUnavailable, want: http.StatusInternalServerError},
	}
	for _, tc := range errCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			flow := &fakeRegistration{err: tc.err}
			r := newTestRouter(func(r *gin.Engine) { NewRegistrationHandler(flow).RegisterRoutes(r) })

			rr := doJSON(t, r, http.MethodPost, "/register-and-verify", RegisterAndVerifyRequest{ChallengeID: "ch-1"})
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "ok", want: http.StatusOK},
		{name: "missing", err: usecase.ErrValidation, want: http.StatusBadRequest},
		{name: "unknown user", err: usecase.ErrUserNotFound, want: http.StatusNotFound},
		{name: "wrong password", err: usecase.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "store down", err: usecase.ErrDependencyUnavailable, want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &fakeAuth{user: domain.User{Email: "a@x.io", Username: "alice"}, err: tc.err}
			r := newTestRouter(func(r *gin.Engine) { NewAuthHandler(auth).RegisterRoutes(r) })

			rr := doJSON(t, r, http.MethodPost, "/login", LoginRequest{Email: "a@x.io", Password: "pw"})
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if tc.err == nil {
				body := decode[LoginResponse](t, rr)
				if body.Username != "alice" || body.Email != "a@x.io" {
					t.Fatalf("unexpected body %+v", body)
				}
			}
		})
	}
}

func TestListUsersRendersTimestamps(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	verified := created.Add(250 * time.Millisecond)
	users := &fakeUsers{users: []domain.User{
		{Email: "a@x.io", Username: "alice", CreatedAt: created, LastVerifiedAt: verified},
	}}
	allow := func(c *gin.Context) { c.Next() }
	r := newTestRouter(func(r *gin.Engine) { NewUserHandler(users).RegisterRoutes(&r.RouterGroup, allow) })

	rr := doJSON(t, r, http.MethodGet, "/users", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("password")) {
		t.Fatalf("listing must not mention password material: %s", rr.Body.String())
	}

	body := decode[UserListResponse](t, rr)
	if len(body.Users) != 1 {
		t.Fatalf("expected one user, got %d", len(body.Users))
	}
	got := body.Users[0]
	if got.CreatedAt != "2026-01-02T03:04:05.000Z" || got.LastVerifiedAt != "2026-01-02T03:04:05.250Z" {
		t.Fatalf("unexpected timestamps %+v", got)
	}
	if got.LastLoginAt != notAvailable {
		t.Fatalf("expected absent login to render %q, got %q", notAvailable, got.LastLoginAt)
	}
}

func TestListUsersStoreFailure(t *testing.T) {
	users := &fakeUsers{err: usecase.ErrDependencyUnavailable}
	allow := func(c *gin.Context) { c.Next() }
	r := newTestRouter(func(r *gin.Engine) { NewUserHandler(users).RegisterRoutes(&r.RouterGroup, allow) })

	rr := doJSON(t, r, http.MethodGet, "/users", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	allow := func(c *gin.Context) { c.Next() }

	t.Run("deleted", func(t *testing.T) {
		users := &fakeUsers{}
		r := newTestRouter(func(r *gin.Engine) { NewUserHandler(users).RegisterRoutes(&r.RouterGroup, allow) })

		rr := doJSON(t, r, http.MethodDelete, "/users/a@x.io", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if users.deleted != "a@x.io" {
			t.Fatalf("expected a@x.io to be deleted, got %q", users.deleted)
		}
	})

	t.Run("not found", func(t *testing.T) {
		users := &fakeUsers{err: usecase.ErrUserNotFound}
		r := newTestRouter(func(r *gin.Engine) { NewUserHandler(users).RegisterRoutes(&r.RouterGroup, allow) })

		rr := doJSON(t, r, http.MethodDelete, "/users/ghost@x.io", nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("guard blocks", func(t *testing.T) {
		users := &fakeUsers{}
		deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }
		r := newTestRouter(func(r *gin.Engine) { NewUserHandler(users).RegisterRoutes(&r.RouterGroup, deny) })

		rr := doJSON(t, r, http.MethodDelete, "/users/a@x.io", nil)
		if rr.Code != http.StatusForbidden || users.deleted != "" {
			t.Fatalf("guard should have stopped the delete, got %d", rr.Code)
		}
	})
}

func TestReadiness(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("down") }

	t.Run("ready", func(t *testing.T) {
		h := NewHealthHandler(WithReadinessCheck("database", healthy))
		r := newTestRouter(func(r *gin.Engine) { r.GET("/readyz", h.Readiness) })

		rr := doJSON(t, r, http.MethodGet, "/readyz", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		h := NewHealthHandler(WithReadinessCheck("database", healthy), WithReadinessCheck("redis", failing))
		r := newTestRouter(func(r *gin.Engine) { r.GET("/readyz", h.Readiness) })

		rr := doJSON(t, r, http.MethodGet, "/readyz", nil)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
		body := decode[ReadinessResponse](t, rr)
		if body.Checks["database"] != "ok" || body.Checks["redis"] != "unavailable" {
			t.Fatalf("unexpected checks %+v", body.Checks)
		}
	})

	t.Run("probe timeout", func(t *testing.T) {
		slow := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		h := NewHealthHandler(WithReadinessCheck("database", slow), WithReadinessTimeout(10*time.Millisecond))
		if _, ready := h.Check(context.Background()); ready {
			t.Fatalf("expected slow probe to fail readiness")
		}
	})
}
