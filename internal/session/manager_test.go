package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/credential"
	"github.com/campuspay/student-portal/internal/model"
	"github.com/campuspay/student-portal/internal/session"
)

// stubAuthAPI implements session.AuthAPI with function fields.
type stubAuthAPI struct {
	login     func(ctx context.Context, email, password string) (*api.LoginResponse, error)
	checkAuth func(ctx context.Context) (*api.CheckAuthResponse, error)
	logout    func(ctx context.Context) error
}

func (s *stubAuthAPI) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	return s.login(ctx, email, password)
}

func (s *stubAuthAPI) CheckAuth(ctx context.Context) (*api.CheckAuthResponse, error) {
	if s.checkAuth == nil {
		return nil, errors.New("not configured")
	}
	return s.checkAuth(ctx)
}

func (s *stubAuthAPI) Logout(ctx context.Context) error {
	if s.logout == nil {
		return nil
	}
	return s.logout(ctx)
}

func testStudent() *model.Student {
	return &model.Student{
		ID:        "stu-1",
		Name:      "Jane Doe",
		Email:     "jane@university.edu",
		StudentID: "UG-2023-001",
	}
}

func newManager(t *testing.T, a session.AuthAPI) (*session.Manager, *credential.Store) {
	t.Helper()
	creds := credential.NewWithKeyring(keyring.NewArrayKeyring(nil))
	mgr := session.NewManager(creds, zerolog.Nop())
	if a != nil {
		mgr.SetAPI(a)
	}
	return mgr, creds
}

// bootUnauthenticated moves a fresh manager out of Initializing the same
// way the app does: a bootstrap with no persisted tokens.
func bootUnauthenticated(t *testing.T, mgr *session.Manager) {
	t.Helper()
	res, err := mgr.Bootstrap(context.Background(), "")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if res.Next != session.RouteLogin {
		t.Fatalf("bootstrap without tokens: next = %q, want %q", res.Next, session.RouteLogin)
	}
}

func TestBootstrapWithoutTokens(t *testing.T) {
	mgr, _ := newManager(t, &stubAuthAPI{})

	res, err := mgr.Bootstrap(context.Background(), session.RouteFees)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if res.Next != session.RouteLogin {
		t.Errorf("next = %q, want %q", res.Next, session.RouteLogin)
	}
	if res.From != session.RouteFees {
		t.Errorf("from = %q, want %q", res.From, session.RouteFees)
	}
	if mgr.State() != session.StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", mgr.State())
	}
}

func TestBootstrapWithValidTokens(t *testing.T) {
	a := &stubAuthAPI{
		checkAuth: func(ctx context.Context) (*api.CheckAuthResponse, error) {
			return &api.CheckAuthResponse{
				User:         testStudent(),
				AccessToken:  "rotated-access",
				RefreshToken: "rotated-refresh",
			}, nil
		},
	}
	mgr, creds := newManager(t, a)
	if err := creds.SaveSession(testStudent(), "old-access", "old-refresh"); err != nil {
		t.Fatalf("seeding credentials: %v", err)
	}

	res, err := mgr.Bootstrap(context.Background(), session.RouteNotifications)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if res.Next != session.RouteNotifications {
		t.Errorf("next = %q, want attempted route replayed", res.Next)
	}
	if mgr.State() != session.StateAuthenticated {
		t.Errorf("state = %v, want authenticated", mgr.State())
	}
	if mgr.Token() != "rotated-access" {
		t.Errorf("token = %q, want rotated pair in memory", mgr.Token())
	}
	access, refresh, ok := creds.Tokens()
	if !ok || access != "rotated-access" || refresh != "rotated-refresh" {
		t.Errorf("persisted tokens = (%q, %q, %v), want rotated pair", access, refresh, ok)
	}
}

func TestBootstrapVerificationFailureClearsCredentials(t *testing.T) {
	a := &stubAuthAPI{
		checkAuth: func(ctx context.Context) (*api.CheckAuthResponse, error) {
			return nil, &api.RequestError{Message: "backend down"}
		},
	}
	mgr, creds := newManager(t, a)
	if err := creds.SaveSession(testStudent(), "access", "refresh"); err != nil {
		t.Fatalf("seeding credentials: %v", err)
	}

	res, err := mgr.Bootstrap(context.Background(), session.RouteDashboard)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if res.Next != session.RouteLogin {
		t.Errorf("next = %q, want login", res.Next)
	}
	if _, _, ok := creds.Tokens(); ok {
		t.Error("persisted tokens survived a failed verification")
	}
	if mgr.State() != session.StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", mgr.State())
	}
}

func TestBootstrapIncompletePayloadIsFailure(t *testing.T) {
	a := &stubAuthAPI{
		checkAuth: func(ctx context.Context) (*api.CheckAuthResponse, error) {
			// Token pair present but no user profile.
			return &api.CheckAuthResponse{AccessToken: "a", RefreshToken: "r"}, nil
		},
	}
	mgr, creds := newManager(t, a)
	if err := creds.SaveSession(testStudent(), "access", "refresh"); err != nil {
		t.Fatalf("seeding credentials: %v", err)
	}

	res, err := mgr.Bootstrap(context.Background(), "")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if res.Next != session.RouteLogin {
		t.Errorf("next = %q, want login", res.Next)
	}
	if mgr.State() != session.StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", mgr.State())
	}
}

func TestLoginSuccessSanitizesAndPersists(t *testing.T) {
	student := testStudent()
	student.Name = `<b>Jane</b>; DROP TABLE--`
	a := &stubAuthAPI{
		login: func(ctx context.Context, email, password string) (*api.LoginResponse, error) {
			return &api.LoginResponse{
				Success:      true,
				Token:        "tok<en>",
				RefreshToken: "refresh",
				Data:         student,
			}, nil
		},
	}
	mgr, creds := newManager(t, a)
	bootUnauthenticated(t, mgr)

	res, err := mgr.Login(context.Background(), "jane@university.edu", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Next != session.RouteDashboard {
		t.Errorf("next = %q, want dashboard", res.Next)
	}
	if mgr.State() != session.StateAuthenticated {
		t.Errorf("state = %v, want authenticated", mgr.State())
	}

	cur := mgr.Current()
	if cur.Student.Name != "bJane/b DROP TABLE--" {
		t.Errorf("student name not sanitized: %q", cur.Student.Name)
	}
	if mgr.Token() != "token" {
		t.Errorf("token not sanitized: %q", mgr.Token())
	}

	profile, err := creds.Profile()
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.Name != cur.Student.Name {
		t.Errorf("persisted profile %q differs from session %q", profile.Name, cur.Student.Name)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	a := &stubAuthAPI{
		login: func(ctx context.Context, email, password string) (*api.LoginResponse, error) {
			return nil, &api.AuthError{Message: "Invalid credentials"}
		},
	}
	mgr, _ := newManager(t, a)
	bootUnauthenticated(t, mgr)

	_, err := mgr.Login(context.Background(), "jane@university.edu", "wrongpass1")
	if !errors.Is(err, session.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if mgr.State() != session.StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated after rejection", mgr.State())
	}
}

func TestLoginRateLimited(t *testing.T) {
	a := &stubAuthAPI{
		login: func(ctx context.Context, email, password string) (*api.LoginResponse, error) {
			return nil, &api.RateLimitError{RetryAfter: 30, Message: "Too many attempts"}
		},
	}
	mgr, _ := newManager(t, a)
	bootUnauthenticated(t, mgr)

	res, err := mgr.Login(context.Background(), "jane@university.edu", "password123")
	var rle *api.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if rle.RetryAfter != 30 {
		t.Errorf("RetryAfter = %d, want 30", rle.RetryAfter)
	}
	if res.Next != session.RouteLoginFailed {
		t.Errorf("next = %q, want login-failed", res.Next)
	}
}

func TestLoginIncompleteResponseIsFailure(t *testing.T) {
	cases := []struct {
		name string
		resp *api.LoginResponse
	}{
		{"success false", &api.LoginResponse{Success: false, Token: "t", RefreshToken: "r", Data: testStudent()}},
		{"missing token", &api.LoginResponse{Success: true, RefreshToken: "r", Data: testStudent()}},
		{"missing refresh", &api.LoginResponse{Success: true, Token: "t", Data: testStudent()}},
		{"missing profile", &api.LoginResponse{Success: true, Token: "t", RefreshToken: "r"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &stubAuthAPI{
				login: func(ctx context.Context, email, password string) (*api.LoginResponse, error) {
					return tc.resp, nil
				},
			}
			mgr, creds := newManager(t, a)
			bootUnauthenticated(t, mgr)

			if _, err := mgr.Login(context.Background(), "jane@university.edu", "password123"); err == nil {
				t.Fatal("incomplete login response accepted")
			}
			if mgr.State() != session.StateUnauthenticated {
				t.Errorf("state = %v, want unauthenticated", mgr.State())
			}
			if _, _, ok := creds.Tokens(); ok {
				t.Error("tokens persisted from incomplete response")
			}
		})
	}
}

func TestLoginSingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	a := &stubAuthAPI{
		login: func(ctx context.Context, email, password string) (*api.LoginResponse, error) {
			close(started)
			<-release
			return &api.LoginResponse{
				Success: true, Token: "t", RefreshToken: "r", Data: testStudent(),
			}, nil
		},
	}
	mgr, _ := newManager(t, a)
	bootUnauthenticated(t, mgr)

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Login(context.Background(), "jane@university.edu", "password123")
		done <- err
	}()

	<-started
	if _, err := mgr.Login(context.Background(), "jane@university.edu", "password123"); !errors.Is(err, session.ErrTransitionInFlight) {
		t.Errorf("concurrent login err = %v, want ErrTransitionInFlight", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first login: %v", err)
	}

	// Authenticated sessions reject another login outright.
	if _, err := mgr.Login(context.Background(), "jane@university.edu", "password123"); !errors.Is(err, session.ErrAlreadyAuthenticated) {
		t.Errorf("login while authenticated err = %v, want ErrAlreadyAuthenticated", err)
	}
}

func TestLogoutClearsLocalStateDespiteServerError(t *testing.T) {
	serverCalled := make(chan struct{}, 1)
	a := &stubAuthAPI{
		login: func(ctx context.Context, email, password string) (*api.LoginResponse, error) {
			return &api.LoginResponse{
				Success: true, Token: "t", RefreshToken: "r", Data: testStudent(),
			}, nil
		},
		logout: func(ctx context.Context) error {
			serverCalled <- struct{}{}
			return errors.New("server unreachable")
		},
	}
	mgr, creds := newManager(t, a)
	bootUnauthenticated(t, mgr)
	if _, err := mgr.Login(context.Background(), "jane@university.edu", "password123"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	res := mgr.Logout(context.Background())
	if res.Next != session.RouteLogin {
		t.Errorf("next = %q, want login", res.Next)
	}
	if mgr.State() != session.StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", mgr.State())
	}
	if _, _, ok := creds.Tokens(); ok {
		t.Error("tokens survived logout")
	}

	select {
	case <-serverCalled:
	case <-time.After(time.Second):
		t.Error("best-effort server logout was never attempted")
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	a := &stubAuthAPI{
		login: func(ctx context.Context, email, password string) (*api.LoginResponse, error) {
			return &api.LoginResponse{
				Success: true, Token: "t", RefreshToken: "r", Data: testStudent(),
			}, nil
		},
	}
	mgr, creds := newManager(t, a)
	bootUnauthenticated(t, mgr)
	if _, err := mgr.Login(context.Background(), "jane@university.edu", "password123"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if !mgr.Invalidate("session expired") {
		t.Fatal("first Invalidate = false, want true")
	}
	// A storm of concurrent 401s: every later report is a no-op.
	for i := 0; i < 5; i++ {
		if mgr.Invalidate("session expired") {
			t.Fatal("repeat Invalidate = true, want false")
		}
	}
	if mgr.State() != session.StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", mgr.State())
	}
	if _, _, ok := creds.Tokens(); ok {
		t.Error("tokens survived invalidation")
	}
}

func TestInvalidateBeforeAuthenticationIsNoOp(t *testing.T) {
	mgr, _ := newManager(t, &stubAuthAPI{})
	if mgr.Invalidate("early 401") {
		t.Error("Invalidate on unauthenticated session = true, want false")
	}
}
