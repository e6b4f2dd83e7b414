package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/http/handlers"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/geocoder89/authservice/internal/service"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake implementation of the handlers.AuthService interface

type fakeAuthService struct {
	registerFn    func(ctx context.Context, in service.RegisterInput) (service.Session, error)
	loginFn       func(ctx context.Context, in service.LoginInput) (service.Session, error)
	verifyFn      func(ctx context.Context, header string) (auth.Identity, error)
	profileFn     func(ctx context.Context, userID string) (user.PublicView, error)
	deductFn      func(ctx context.Context, userID string, amount int64) error
	notifyOrderFn func(ctx context.Context, userID, transactionID string, amount float64) error
}

func (f *fakeAuthService) Register(ctx context.Context, in service.RegisterInput) (service.Session, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, in)
	}
	return service.Session{}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, in service.LoginInput) (service.Session, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, in)
	}
	return service.Session{}, nil
}

func (f *fakeAuthService) VerifyIdentity(ctx context.Context, header string) (auth.Identity, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, header)
	}
	return auth.Identity{}, nil
}

func (f *fakeAuthService) GetProfile(ctx context.Context, userID string) (user.PublicView, error) {
	if f.profileFn != nil {
		return f.profileFn(ctx, userID)
	}
	return user.PublicView{}, nil
}

func (f *fakeAuthService) DeductWalletBalance(ctx context.Context, userID string, amount int64) error {
	if f.deductFn != nil {
		return f.deductFn(ctx, userID, amount)
	}
	return nil
}

func (f *fakeAuthService) NotifyOrder(ctx context.Context, userID, transactionID string, amount float64) error {
	if f.notifyOrderFn != nil {
		return f.notifyOrderFn(ctx, userID, transactionID, amount)
	}
	return nil
}

func newTestRouter(svc handlers.AuthService) *gin.Engine {
	r := gin.New()
	h := handlers.NewAuthHandler(svc, handlers.CookieConfig{Name: "token"}, observability.Discard())

	// stands in for the auth middleware
	withUser := func(c *gin.Context) {
		c.Set(middlewares.CtxUserID, "user-1")
		c.Next()
	}

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.GET("/verify", h.Verify)
	r.GET("/profile", withUser, h.Profile)
	r.POST("/deduct-balance", withUser, h.DeductBalance)
	r.POST("/notify-order", withUser, h.NotifyOrder)
	r.GET("/profile-anon", h.Profile)

	return r
}

func do(r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json body: %v body=%s", err, w.Body.String())
	}
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("missing error envelope: %s", w.Body.String())
	}
	code, _ := e["code"].(string)
	return code
}

func session() service.Session {
	return service.Session{
		Token:     "signed.jwt.token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
		User:      user.PublicView{ID: "user-1", Email: "a@example.com", Name: "A", ReferralCode: "ABCD1234"},
	}
}

func TestRegister_Created(t *testing.T) {
	var got service.RegisterInput

	svc := &fakeAuthService{registerFn: func(ctx context.Context, in service.RegisterInput) (service.Session, error) {
		got = in
		return session(), nil
	}}

	w := do(newTestRouter(svc), http.MethodPost, "/register",
		`{"email":"a@example.com","password":"secret1","name":"A","notificationPreference":"sms","phoneNumber":"+15550001111","referralCodeUsed":"ZZZZ9999"}`, nil)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}

	if got.ReferralCodeUsed != "ZZZZ9999" || got.NotificationPreference != "sms" || got.PhoneNumber != "+15550001111" {
		t.Fatalf("input not passed through: %+v", got)
	}

	body := decode(t, w)
	if body["token"] != "signed.jwt.token" || body["success"] != true || body["message"] != "User registered successfully" {
		t.Fatalf("unexpected body: %v", body)
	}

	u, _ := body["user"].(map[string]any)
	if _, leaked := u["password"]; leaked {
		t.Fatalf("user view leaks password: %v", u)
	}
	if _, leaked := u["passwordHash"]; leaked {
		t.Fatalf("user view leaks passwordHash: %v", u)
	}

	cookie := w.Result().Cookies()
	if len(cookie) != 1 || cookie[0].Name != "token" || cookie[0].Value != "signed.jwt.token" {
		t.Fatalf("expected session cookie, got %+v", cookie)
	}
	if !cookie[0].HttpOnly {
		t.Fatalf("session cookie must be HttpOnly")
	}
	if cookie[0].MaxAge < int((23 * time.Hour).Seconds()) {
		t.Fatalf("cookie lifetime should match the token, got MaxAge=%d", cookie[0].MaxAge)
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "short password never reaches service", body: `{"email":"a@example.com","password":"12345","name":"A"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "duplicate email", body: `{"email":"a@example.com","password":"secret1","name":"A"}`, err: user.ErrDuplicateEmail, wantStatus: http.StatusBadRequest, wantCode: "email_taken"},
		{name: "service input error", body: `{"email":"a@example.com","password":"secret1","name":"A","phoneNumber":"x"}`, err: &service.InputError{Fields: map[string]string{"phoneNumber": "bad"}}, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "unexpected", body: `{"email":"a@example.com","password":"secret1","name":"A"}`, err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &fakeAuthService{registerFn: func(ctx context.Context, in service.RegisterInput) (service.Session, error) {
				called = true
				return service.Session{}, tt.err
			}}

			w := do(newTestRouter(svc), http.MethodPost, "/register", tt.body, nil)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Fatalf("code = %q, want %q", code, tt.wantCode)
			}
			if tt.err == nil && called {
				t.Fatalf("service should not be called for invalid bodies")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "ok", body: `{"email":"a@example.com","password":"secret1"}`, wantStatus: http.StatusOK},
		{name: "missing password", body: `{"email":"a@example.com"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "bad credentials", body: `{"email":"a@example.com","password":"nope"}`, err: service.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized, wantCode: "invalid_credentials"},
		{name: "store failure", body: `{"email":"a@example.com","password":"nope"}`, err: errors.New("db gone"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{loginFn: func(ctx context.Context, in service.LoginInput) (service.Session, error) {
				if tt.err != nil {
					return service.Session{}, tt.err
				}
				return session(), nil
			}}

			w := do(newTestRouter(svc), http.MethodPost, "/login", tt.body, nil)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantCode == "" {
				body := decode(t, w)
				if body["message"] != "Login successful" || body["token"] != "signed.jwt.token" {
					t.Fatalf("unexpected body: %v", body)
				}
				return
			}

			if code := errorCode(t, w); code != tt.wantCode {
				t.Fatalf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	svc := &fakeAuthService{verifyFn: func(ctx context.Context, header string) (auth.Identity, error) {
		switch header {
		case "Bearer good":
			return auth.Identity{UserID: "user-1", Email: "a@example.com"}, nil
		case "":
			return auth.Identity{}, service.ErrUnauthorized
		default:
			return auth.Identity{}, errors.Join(service.ErrUnauthorized, auth.ErrTokenExpired)
		}
	}}
	r := newTestRouter(svc)

	w := do(r, http.MethodGet, "/verify", "", map[string]string{"Authorization": "Bearer good"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["valid"] != true || body["userId"] != "user-1" || body["email"] != "a@example.com" {
		t.Fatalf("unexpected body: %v", body)
	}

	for _, header := range []string{"", "Bearer expired"} {
		w := do(r, http.MethodGet, "/verify", "", map[string]string{"Authorization": header})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, w.Code)
		}
		if body := decode(t, w); body["valid"] != false {
			t.Fatalf("header %q: expected valid=false, got %v", header, body)
		}
	}
}

func TestProfile(t *testing.T) {
	svc := &fakeAuthService{profileFn: func(ctx context.Context, userID string) (user.PublicView, error) {
		if userID != "user-1" {
			t.Fatalf("unexpected user id %q", userID)
		}
		return user.PublicView{ID: "user-1", Email: "a@example.com", WalletBalance: 20}, nil
	}}

	w := do(newTestRouter(svc), http.MethodGet, "/profile", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	u, _ := decode(t, w)["user"].(map[string]any)
	if u["walletBalance"] != float64(20) {
		t.Fatalf("unexpected user: %v", u)
	}

	svc.profileFn = func(ctx context.Context, userID string) (user.PublicView, error) {
		return user.PublicView{}, user.ErrNotFound
	}
	w = do(newTestRouter(svc), http.MethodGet, "/profile", "", nil)
	if w.Code != http.StatusNotFound || errorCode(t, w) != "not_found" {
		t.Fatalf("status = %d body=%s, want 404 not_found", w.Code, w.Body.String())
	}

	w = do(newTestRouter(svc), http.MethodGet, "/profile-anon", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without identity", w.Code)
	}
}

func TestDeductBalance(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "ok", body: `{"amount":5}`, wantStatus: http.StatusOK},
		{name: "zero", body: `{"amount":0}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "fractional", body: `{"amount":1.5}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "insufficient", body: `{"amount":500}`, err: user.ErrInsufficientBalance, wantStatus: http.StatusBadRequest, wantCode: "insufficient_balance"},
		{name: "vanished user", body: `{"amount":5}`, err: user.ErrNotFound, wantStatus: http.StatusBadRequest, wantCode: "user_not_found"},
		{name: "store failure", body: `{"amount":5}`, err: errors.New("db gone"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{deductFn: func(ctx context.Context, userID string, amount int64) error {
				return tt.err
			}}

			w := do(newTestRouter(svc), http.MethodPost, "/deduct-balance", tt.body, nil)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantCode == "" {
				if msg := decode(t, w)["message"]; msg != "Balance deducted successfully" {
					t.Fatalf("unexpected message %v", msg)
				}
				return
			}

			if code := errorCode(t, w); code != tt.wantCode {
				t.Fatalf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestNotifyOrder(t *testing.T) {
	var gotTxn string
	var gotAmount float64

	svc := &fakeAuthService{notifyOrderFn: func(ctx context.Context, userID, transactionID string, amount float64) error {
		gotTxn, gotAmount = transactionID, amount
		return nil
	}}

	w := do(newTestRouter(svc), http.MethodPost, "/notify-order", `{"transactionId":"TX-9","amount":99.5}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if gotTxn != "TX-9" || gotAmount != 99.5 {
		t.Fatalf("unexpected args %q %v", gotTxn, gotAmount)
	}

	w = do(newTestRouter(svc), http.MethodPost, "/notify-order", `{"amount":10}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing transactionId: status = %d, want 400", w.Code)
	}

	svc.notifyOrderFn = func(ctx context.Context, userID, transactionID string, amount float64) error {
		return errors.New("db gone")
	}
	w = do(newTestRouter(svc), http.MethodPost, "/notify-order", `{"transactionId":"TX-9","amount":10}`, nil)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "Failed to send notification") {
		t.Fatalf("status = %d body=%s, want 500", w.Code, w.Body.String())
	}
}
