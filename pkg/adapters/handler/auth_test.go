package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.AdminPasswordHash = string(hash)
	auth := NewAuthHandler(cfg, discardLogger())
	mw := NewMiddleware(cfg, discardLogger())

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"correct password", `{"password":"hunter22"}`, http.StatusOK},
		{"wrong password", `{"password":"nope"}`, http.StatusUnauthorized},
		{"missing password", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			auth.PasswordLogin(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body)))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}

			var cookieSet bool
			for _, c := range rr.Result().Cookies() {
				if c.Name == "auth_token" && c.Value == resp["token"] {
					cookieSet = true
				}
			}
			if !cookieSet {
				t.Error("auth_token cookie should hold the issued token")
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/links", nil)
			req.Header.Set("Authorization", "Bearer "+resp["token"])
			protected := httptest.NewRecorder()
			mw.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(protected, req)
			if protected.Code != http.StatusOK {
				t.Errorf("issued token rejected: %d", protected.Code)
			}
		})
	}
}

func TestPasswordLoginDisabled(t *testing.T) {
	auth := NewAuthHandler(testConfig(), discardLogger())

	rr := httptest.NewRecorder()
	auth.PasswordLogin(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":"x"}`)))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestGoogleLoginSetsState(t *testing.T) {
	cfg := testConfig()
	cfg.GoogleClientID = "client-id"
	cfg.GoogleRedirectURL = "http://localhost:8080/auth/google/callback"
	auth := NewAuthHandler(cfg, discardLogger())

	rr := httptest.NewRecorder()
	auth.Login(rr, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d", rr.Code)
	}
	var state string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "oauthstate" {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatal("oauthstate cookie missing")
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://accounts.google.com/") || !strings.Contains(loc, "client_id=client-id") {
		t.Errorf("unexpected Location %q", loc)
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	auth := NewAuthHandler(testConfig(), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=evil&code=x", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "good"})
	rr := httptest.NewRecorder()
	auth.Callback(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
