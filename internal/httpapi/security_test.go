package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"furnidesk/backend/internal/domain"
	"furnidesk/backend/internal/ordlock"
	"furnidesk/backend/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}

func TestRequestLogCarriesStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := newTestAPI(t, WithLogger(zap.New(core))).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-missing", nil))

	entries := logs.FilterMessage("request").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 request log entries, got %d", len(entries))
	}
	statuses := []int64{}
	for _, entry := range entries {
		if entry.Level != zapcore.InfoLevel {
			t.Fatalf("expected info level, got %s", entry.Level)
		}
		fields := entry.ContextMap()
		if fields["method"] != http.MethodGet {
			t.Fatalf("expected method field, got %v", fields)
		}
		if _, ok := fields["duration"]; !ok {
			t.Fatalf("expected duration field, got %v", fields)
		}
		statuses = append(statuses, fields["status"].(int64))
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusNotFound {
		t.Fatalf("expected statuses [200 404], got %v", statuses)
	}
	if path := entries[1].ContextMap()["path"]; path != "/api/v1/orders/ord-missing" {
		t.Fatalf("unexpected path %v", path)
	}
}

func TestPreflightShortCircuits(t *testing.T) {
	api := newTestAPIWith(t, NewAuthManager(testSecret, time.Hour), ordlock.NewLocalLocker(), nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders/ord-1", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"customer_id":"%s","items":[]}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", res.Code)
	}
}

func TestAuthRequiredWhenSecretConfigured(t *testing.T) {
	api := newTestAPIWith(t, NewAuthManager(testSecret, time.Hour), ordlock.NewLocalLocker(), nil)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected healthz to stay public, got %d", res.Code)
	}
}

func TestTokenSubjectBecomesAuditActor(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)
	handler := newTestAPIWith(t, auth, ordlock.NewLocalLocker(), nil).Handler()

	token, _, err := auth.IssueToken("dina", "sales")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(
		`{"customer_id":"cust-1","items":[{"product_id":"A","quantity":1,"unit_price":"10"}]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var created domain.OrderResponse
	decodeBody(t, res, &created)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+created.Order.ID+"/audit-logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		AuditLogs []domain.AuditLog `json:"audit_logs"`
	}
	decodeBody(t, res, &body)
	if len(body.AuditLogs) == 0 || body.AuditLogs[0].ActorUsername != "dina" {
		t.Fatalf("expected audit actor dina, got %+v", body.AuditLogs)
	}
}

func TestParseTokenRejectsOtherSecretsAndAlgorithms(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)

	other := NewAuthManager("another-secret-another-secret-xx", time.Hour)
	foreign, _, err := other.IssueToken("dina", "sales")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := auth.ParseToken(foreign); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.RegisteredClaims{Subject: "dina"})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseToken(raw); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}

	expired, err := auth.sign("dina", "sales", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestNewAuthManagerDisabledWithoutSecret(t *testing.T) {
	if NewAuthManager("  ", time.Hour) != nil {
		t.Fatalf("expected nil manager for blank secret")
	}
}

func TestInternalErrorsExposeOnlyStage(t *testing.T) {
	api := newTestAPI(t)
	res := httptest.NewRecorder()

	api.writeServiceError(res, &service.StageError{
		Stage: service.StageInsertItems,
		Err:   errors.New(`pq: relation "order_items" does not exist`),
	})

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal server error" || body["stage"] != service.StageInsertItems {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	if got := parsePositiveLimit("", 50, 500); got != 50 {
		t.Fatalf("expected fallback 50, got %d", got)
	}
	if got := parsePositiveLimit("-3", 50, 500); got != 50 {
		t.Fatalf("expected fallback for negative, got %d", got)
	}
	if got := parsePositiveLimit("9999", 50, 500); got != 500 {
		t.Fatalf("expected cap 500, got %d", got)
	}
	if got := parsePositiveLimit(" 20 ", 50, 500); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
}
