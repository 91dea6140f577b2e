package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/botforge/miniapp-system/internal/core/domain"
	"github.com/botforge/miniapp-system/internal/core/service"
)

const botToken = "12345:test-bot-token"

type nopSessionStore struct{}

func (nopSessionStore) Save(context.Context, domain.Session) error { return nil }
func (nopSessionStore) Get(context.Context, string) (*domain.Session, error) {
	return nil, nil
}
func (nopSessionStore) Delete(context.Context, string) error { return nil }

// fakeAuth satisfies the auth service port with canned results and a
// call log.
type fakeAuth struct {
	principal *domain.Principal
	session   *domain.Session
	err       error
	calls     []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		principal: &domain.Principal{
			ID:           "p-1",
			IdentityKeys: []string{"tg:42"},
			Roles:        []domain.Role{domain.RoleUser},
		},
		session: &domain.Session{
			Token:       "tok-1",
			PrincipalID: "p-1",
			IssuedAt:    time.Now(),
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
}

func (f *fakeAuth) record(name string) { f.calls = append(f.calls, name) }

func (f *fakeAuth) StartCode(_ context.Context, _ string) error {
	f.record("StartCode")
	return f.err
}

func (f *fakeAuth) CompleteCode(_ context.Context, _, _ string) (*domain.Principal, *domain.Session, error) {
	f.record("CompleteCode")
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.principal, f.session, nil
}

func (f *fakeAuth) StartDeepLink(_ context.Context, _ domain.ExternalIdentity) (string, error) {
	f.record("StartDeepLink")
	return "link-token", f.err
}

func (f *fakeAuth) CompleteDeepLink(_ context.Context, _ string) (*domain.Principal, *domain.Session, error) {
	f.record("CompleteDeepLink")
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.principal, f.session, nil
}

func (f *fakeAuth) Signup(_ context.Context, _, _ string) error {
	f.record("Signup")
	return f.err
}

func (f *fakeAuth) CompleteSignup(_ context.Context, _, _ string) (*domain.Principal, *domain.Session, error) {
	f.record("CompleteSignup")
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.principal, f.session, nil
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (*domain.Principal, *domain.Session, error) {
	f.record("Login")
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.principal, f.session, nil
}

func (f *fakeAuth) LinkEmail(_ context.Context, _, _, _ string) (*domain.Principal, error) {
	f.record("LinkEmail")
	if f.err != nil {
		return nil, f.err
	}
	return f.principal, nil
}

func (f *fakeAuth) LoginIdentity(_ context.Context, _ domain.ExternalIdentity) (*domain.Principal, *domain.Session, error) {
	f.record("LoginIdentity")
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.principal, f.session, nil
}

func (f *fakeAuth) Logout(_ context.Context, _ string) error {
	f.record("Logout")
	return f.err
}

func newAuthHandlerFixture(auth *fakeAuth) *AuthHandler {
	sessions := service.NewSessionManager(nopSessionStore{}, service.SessionConfig{TTL: time.Hour})
	return NewAuthHandler(auth, sessions, botToken, time.Hour)
}

func authContext(method, path, body string, decorate func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// signedClientPayload builds a genuinely signed init-data string.
func signedClientPayload(startParam string) string {
	fields := map[string]string{
		"user":      `{"id":42,"first_name":"Ada","username":"ada"}`,
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
	}
	if startParam != "" {
		fields["start_param"] = startParam
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func TestMiniapp_AuthorizationHeader(t *testing.T) {
	auth := newFakeAuth()
	h := newAuthHandlerFixture(auth)

	payload := signedClientPayload("invite-xyz")
	c, rec := authContext(http.MethodPost, "/auth/miniapp", "", func(req *http.Request) {
		req.Header.Set("Authorization", "tma "+payload)
	})

	if err := h.Miniapp(c); err != nil {
		t.Fatalf("miniapp: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(auth.calls) != 1 || auth.calls[0] != "LoginIdentity" {
		t.Fatalf("unexpected calls: %v", auth.calls)
	}

	var resp struct {
		Principal  *domain.Principal `json:"principal"`
		StartParam string            `json:"start_param"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Principal == nil || resp.Principal.ID != "p-1" {
		t.Fatalf("unexpected principal: %+v", resp.Principal)
	}
	if resp.StartParam != "invite-xyz" {
		t.Fatalf("start_param not relayed: %q", resp.StartParam)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "tok-1" || !cookies[0].HttpOnly {
		t.Fatalf("unexpected session cookie: %+v", cookies)
	}
}

func TestMiniapp_BodyPayload(t *testing.T) {
	auth := newFakeAuth()
	h := newAuthHandlerFixture(auth)

	body, _ := json.Marshal(map[string]string{"init_data": signedClientPayload("")})
	c, rec := authContext(http.MethodPost, "/auth/miniapp", string(body), nil)

	if err := h.Miniapp(c); err != nil {
		t.Fatalf("miniapp: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMiniapp_TamperedPayload(t *testing.T) {
	auth := newFakeAuth()
	h := newAuthHandlerFixture(auth)

	payload := strings.Replace(signedClientPayload(""), "42", "43", 1)
	c, _ := authContext(http.MethodPost, "/auth/miniapp", "", func(req *http.Request) {
		req.Header.Set("Authorization", "tma "+payload)
	})

	if err := h.Miniapp(c); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if len(auth.calls) != 0 {
		t.Fatalf("auth service must not run on failed verification: %v", auth.calls)
	}
}

func TestMiniapp_MissingPayload(t *testing.T) {
	h := newAuthHandlerFixture(newFakeAuth())

	c, _ := authContext(http.MethodPost, "/auth/miniapp", "{}", nil)
	if err := h.Miniapp(c); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestCodeComplete_SetsCookie(t *testing.T) {
	auth := newFakeAuth()
	h := newAuthHandlerFixture(auth)

	c, rec := authContext(http.MethodPost, "/auth/code/complete",
		`{"identity_key":"tg:42","code":"123456"}`, nil)
	if err := h.CodeComplete(c); err != nil {
		t.Fatalf("code complete: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if cookies := rec.Result().Cookies(); len(cookies) != 1 || cookies[0].Value != "tok-1" {
		t.Fatalf("session cookie missing: %+v", cookies)
	}
}

func TestCodeComplete_RejectsMalformedCode(t *testing.T) {
	auth := newFakeAuth()
	h := newAuthHandlerFixture(auth)

	c, _ := authContext(http.MethodPost, "/auth/code/complete",
		`{"identity_key":"tg:42","code":"12ab"}`, nil)
	err := h.CodeComplete(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(auth.calls) != 0 {
		t.Fatalf("service must not see invalid input: %v", auth.calls)
	}
}

func TestLogin_ErrorPropagates(t *testing.T) {
	auth := newFakeAuth()
	auth.err = fmt.Errorf("login: %w", domain.ErrInvalidCredential)
	h := newAuthHandlerFixture(auth)

	c, _ := authContext(http.MethodPost, "/auth/email/login",
		`{"email":"ada@example.com","password":"password123"}`, nil)
	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestMe(t *testing.T) {
	h := newAuthHandlerFixture(newFakeAuth())

	// Anonymous → 401.
	c, _ := authContext(http.MethodGet, "/auth/me", "", nil)
	err := h.Me(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	// Authenticated → the principal, without secrets.
	c, rec := authContext(http.MethodGet, "/auth/me", "", nil)
	c.Set("auth_principal", &domain.Principal{ID: "p-1", PasswordHash: "bcrypt-hash"})
	if err := h.Me(c); err != nil {
		t.Fatalf("me: %v", err)
	}
	if strings.Contains(rec.Body.String(), "bcrypt-hash") {
		t.Fatal("password hash must never be serialized")
	}
}

func TestLogout(t *testing.T) {
	auth := newFakeAuth()
	h := newAuthHandlerFixture(auth)

	// With a live session the token is revoked and the cookie cleared.
	c, rec := authContext(http.MethodPost, "/auth/logout", "", nil)
	c.Set("auth_session", &domain.Session{Token: "tok-1", PrincipalID: "p-1"})
	if err := h.Logout(c); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(auth.calls) != 1 || auth.calls[0] != "Logout" {
		t.Fatalf("unexpected calls: %v", auth.calls)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "" || cookies[0].MaxAge != -1 {
		t.Fatalf("expected clearing cookie, got %+v", cookies)
	}

	// Anonymous logout is still a success.
	auth.calls = nil
	c, rec = authContext(http.MethodPost, "/auth/logout", "", nil)
	if err := h.Logout(c); err != nil {
		t.Fatalf("anonymous logout: %v", err)
	}
	if rec.Code != http.StatusOK || len(auth.calls) != 0 {
		t.Fatalf("unexpected anonymous logout result: %d, %v", rec.Code, auth.calls)
	}
}

func TestLinkEmail_RequiresPrincipal(t *testing.T) {
	auth := newFakeAuth()
	h := newAuthHandlerFixture(auth)

	c, _ := authContext(http.MethodPost, "/auth/email/link",
		`{"email":"ada@example.com","password":"password123"}`, nil)
	err := h.LinkEmail(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	c, rec := authContext(http.MethodPost, "/auth/email/link",
		`{"email":"ada@example.com","password":"password123"}`, nil)
	c.Set("auth_principal", &domain.Principal{ID: "p-1"})
	if err := h.LinkEmail(c); err != nil {
		t.Fatalf("link email: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(auth.calls) != 1 || auth.calls[0] != "LinkEmail" {
		t.Fatalf("unexpected calls: %v", auth.calls)
	}
}
