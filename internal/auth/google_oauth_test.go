package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// newGoogleTestServer はトークンエンドポイントとuserinfoエンドポイントを持つテストサーバーを返す。
func newGoogleTestServer(t *testing.T, userInfoStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("code") != "valid-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("Authorization = %q", got)
		}
		if userInfoStatus != http.StatusOK {
			w.WriteHeader(userInfoStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":    "google-12345",
			"email": "user@gmail.com",
			"name":  "Google User",
		})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestGoogleProvider(ts *httptest.Server) *GoogleOAuthProvider {
	return NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		Endpoint: &oauth2.Endpoint{
			AuthURL:  ts.URL + "/auth",
			TokenURL: ts.URL + "/token",
		},
		UserInfoEndpoint: ts.URL + "/",
		HTTPClient:       ts.Client(),
	})
}

func TestGoogleOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	url := provider.GetLoginURL("test-state-value")

	if !strings.HasPrefix(url, "https://accounts.google.com/") {
		t.Errorf("URL = %q, want Google auth endpoint", url)
	}
	for _, want := range []string{
		"client_id=test-client-id",
		"redirect_uri=",
		"state=test-state-value",
		"response_type=code",
		"email",
		"profile",
	} {
		if !strings.Contains(url, want) {
			t.Errorf("URL should contain %q, got %q", want, url)
		}
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	ts := newGoogleTestServer(t, http.StatusOK)
	provider := newTestGoogleProvider(ts)

	info, err := provider.ExchangeCode(context.Background(), "valid-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if info.Provider != "google" {
		t.Errorf("Provider = %q, want google", info.Provider)
	}
	if info.ProviderUserID != "google-12345" {
		t.Errorf("ProviderUserID = %q, want google-12345", info.ProviderUserID)
	}
	if info.Email != "user@gmail.com" || info.Name != "Google User" {
		t.Errorf("info = %+v", info)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	ts := newGoogleTestServer(t, http.StatusOK)
	provider := newTestGoogleProvider(ts)

	if _, err := provider.ExchangeCode(context.Background(), "redeemed-code"); err == nil {
		t.Fatal("expected error from ExchangeCode with invalid code")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_UserInfoError(t *testing.T) {
	ts := newGoogleTestServer(t, http.StatusUnauthorized)
	provider := newTestGoogleProvider(ts)

	if _, err := provider.ExchangeCode(context.Background(), "valid-code"); err == nil {
		t.Fatal("expected error when user info fetch fails")
	}
}
