package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campuspay/student-portal/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "/api/v1", func() string { return token })
}

func TestBearerTokenAndRequestID(t *testing.T) {
	var auth, reqID string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		reqID = r.Header.Get("X-Request-ID")
		if r.URL.Path != "/api/v1/students/check-auth" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(CheckAuthResponse{
			User:         &model.Student{ID: "s1", Email: "a@b.edu"},
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
		})
	}, "current-token")

	resp, err := client.CheckAuth(context.Background())
	if err != nil {
		t.Fatalf("CheckAuth: %v", err)
	}
	if auth != "Bearer current-token" {
		t.Errorf("Authorization = %q", auth)
	}
	if reqID == "" {
		t.Error("X-Request-ID missing")
	}
	if resp.AccessToken != "new-access" {
		t.Errorf("access token = %q", resp.AccessToken)
	}
}

func TestLoginIsUnauthenticated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("login sent Authorization = %q, want none", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "jane@university.edu" {
			t.Errorf("email = %q", body["email"])
		}
		json.NewEncoder(w).Encode(LoginResponse{
			Success:      true,
			Token:        "t",
			RefreshToken: "r",
			Data:         &model.Student{ID: "s1", Email: "jane@university.edu"},
		})
	}, "stale-token")

	resp, err := client.Login(context.Background(), "jane@university.edu", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !resp.Success || resp.Token != "t" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
	}, "")

	_, err := client.Login(context.Background(), "a@b.edu", "nope12345")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if authErr.Message != "Invalid credentials" {
		t.Errorf("message = %q", authErr.Message)
	}
}

func TestRateLimitRetryAfterSources(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{
			name: "json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"message":    "Too many attempts",
					"retryAfter": 42,
				})
			},
			want: 42,
		},
		{
			name: "header",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "15")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: 15,
		},
		{
			name: "default",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: 60,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.handler, "")
			_, err := client.Login(context.Background(), "a@b.edu", "password1")
			rle, ok := IsRateLimited(err)
			if !ok {
				t.Fatalf("err = %v, want RateLimitError", err)
			}
			if rle.RetryAfter != tc.want {
				t.Errorf("RetryAfter = %d, want %d", rle.RetryAfter, tc.want)
			}
		})
	}
}

func TestServerErrorMapsToRequestError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"message": "upstream down"})
	}, "tok")

	_, err := client.Payments(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v, want RequestError", err)
	}
	if reqErr.Status != http.StatusBadGateway || reqErr.Message != "upstream down" {
		t.Errorf("reqErr = %+v", reqErr)
	}
}

func TestNotificationQueryEncoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "20" {
			t.Errorf("pagination = %v", q)
		}
		if q.Get("type") != "payment_success" || q.Get("sortBy") != "createdAt" || q.Get("sortOrder") != "desc" {
			t.Errorf("filter/sort = %v", q)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"notifications": []model.Notification{{ID: "n1", Message: "hi"}},
			"unreadCount":   3,
			"total":         41,
		})
	}, "tok")

	page, err := client.Notifications(context.Background(), NotificationQuery{
		Page:      2,
		Limit:     20,
		Type:      "payment_success",
		SortBy:    "createdAt",
		SortOrder: "desc",
	})
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if page.UnreadCount != 3 || page.Total != 41 || len(page.Notifications) != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(&RequestError{Message: "specific"}, "fallback"); got != "specific" {
		t.Errorf("got %q", got)
	}
	if got := UserMessage(errors.New("opaque"), "fallback"); got != "fallback" {
		t.Errorf("got %q", got)
	}
	if got := UserMessage(&AuthError{Message: "expired"}, "fallback"); got != "expired" {
		t.Errorf("got %q", got)
	}
}
