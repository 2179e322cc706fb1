package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/services"
	"github.com/learnhubhq/learnhub-api/utils/auth"
	"github.com/learnhubhq/learnhub-api/utils/middleware"
)

const (
	studentID = "2a3a8f9e-5b7c-4d1e-9f0a-111111111111"
	adminID   = "7b7b7b7b-1234-4abc-9def-555555555555"
	courseID  = "6c1d2e3f-7a8b-4c9d-8e0f-222222222222"
)

// stubStore is a canned ReconciliationStore for handler tests
type stubStore struct {
	course    *model.Course
	user      *model.User
	settleErr error
}

func (s *stubStore) FindPaymentByReference(ctx context.Context, reference string) (*model.Payment, error) {
	return nil, nil
}

func (s *stubStore) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	if s.course != nil && s.course.ID == id {
		return s.course, nil
	}
	return nil, nil
}

func (s *stubStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, nil
}

func (s *stubStore) Settle(ctx context.Context, params services.SettleParams) (*services.SettleResult, error) {
	if s.settleErr != nil {
		return nil, s.settleErr
	}
	return &services.SettleResult{PaymentID: "pay-1", EnrollmentID: "enr-1"}, nil
}

func defaultStubStore() *stubStore {
	return &stubStore{
		course: &model.Course{
			ID:       courseID,
			Title:    "Distributed Systems Cohort 4",
			Price:    5000,
			Currency: "NGN",
			Status:   model.CourseStatusPublished,
		},
		user: &model.User{ID: studentID, Email: "ada@example.com", Name: "Ada", Role: model.RoleStudent},
	}
}

func newPaystackStub(t *testing.T, amount int64, currency, email string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data": map[string]interface{}{
				"id": 7001, "status": "success", "amount": amount, "currency": currency,
				"customer": map[string]interface{}{"email": email},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

type testEnv struct {
	app        *fiber.App
	jwtManager *auth.JWTManager
}

func newTestEnv(t *testing.T, store services.ReconciliationStore, paystackURL string) *testEnv {
	t.Helper()

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "learnhub-api-test",
	})
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	paystackClient := services.NewPaystackClient(paystackURL, "sk_test")
	reconciliation := services.NewReconciliationService(store, paystackClient, nil, nil)
	handler := NewPaymentHandler(nil, reconciliation)

	app := fiber.New()
	app.Post("/api/v1/payments/verify", authMiddleware.Required(), handler.Verify)

	return &testEnv{app: app, jwtManager: jwtManager}
}

func (e *testEnv) token(t *testing.T, userID, email, role string) string {
	t.Helper()
	token, err := e.jwtManager.GenerateAccessToken(userID, email, role)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (e *testEnv) verify(t *testing.T, token string, body map[string]string) (*http.Response, *apiResponse) {
	t.Helper()

	payload, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/api/v1/payments/verify", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, &parsed
}

func TestVerifyEndpointHappyPath(t *testing.T) {
	paystack := newPaystackStub(t, 500000, "NGN", "ada@example.com")
	env := newTestEnv(t, defaultStubStore(), paystack.URL)
	token := env.token(t, studentID, "ada@example.com", model.RoleStudent)

	resp, parsed := env.verify(t, token, map[string]string{
		"reference": "ref-1", "course_id": courseID, "student_id": studentID,
	})

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !parsed.Success {
		t.Fatalf("expected success response, got %+v", parsed)
	}

	var result services.VerifyResult
	if err := json.Unmarshal(parsed.Data, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.PaymentID != "pay-1" || result.EnrollmentID != "enr-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestVerifyEndpointRequiresAuth(t *testing.T) {
	paystack := newPaystackStub(t, 500000, "NGN", "ada@example.com")
	env := newTestEnv(t, defaultStubStore(), paystack.URL)

	resp, _ := env.verify(t, "", map[string]string{
		"reference": "ref-1", "course_id": courseID, "student_id": studentID,
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestVerifyEndpointRejectsOtherStudentsPayment(t *testing.T) {
	paystack := newPaystackStub(t, 500000, "NGN", "ada@example.com")
	env := newTestEnv(t, defaultStubStore(), paystack.URL)
	token := env.token(t, "1c1c1c1c-9999-4888-b777-666666666666", "eve@example.com", model.RoleStudent)

	resp, _ := env.verify(t, token, map[string]string{
		"reference": "ref-1", "course_id": courseID, "student_id": studentID,
	})
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestVerifyEndpointAllowsAdminOnBehalfOfStudent(t *testing.T) {
	paystack := newPaystackStub(t, 500000, "NGN", "ada@example.com")
	env := newTestEnv(t, defaultStubStore(), paystack.URL)
	token := env.token(t, adminID, "admin@learnhub.app", model.RoleAdmin)

	resp, _ := env.verify(t, token, map[string]string{
		"reference": "ref-1", "course_id": courseID, "student_id": studentID,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.StatusCode)
	}
}

func TestVerifyEndpointValidatesBody(t *testing.T) {
	paystack := newPaystackStub(t, 500000, "NGN", "ada@example.com")
	env := newTestEnv(t, defaultStubStore(), paystack.URL)
	token := env.token(t, studentID, "ada@example.com", model.RoleStudent)

	cases := []map[string]string{
		{"course_id": courseID, "student_id": studentID},
		{"reference": "ref-1", "course_id": "not-a-uuid", "student_id": studentID},
		{"reference": "ref-1", "course_id": courseID, "student_id": "not-a-uuid"},
	}
	for i, body := range cases {
		resp, parsed := env.verify(t, token, body)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d", i, resp.StatusCode)
		}
		if parsed.Error == nil || parsed.Error.Code != "INVALID_REQUEST" {
			t.Fatalf("case %d: expected INVALID_REQUEST code, got %+v", i, parsed.Error)
		}
	}
}

func TestVerifyEndpointAmountMismatch(t *testing.T) {
	paystack := newPaystackStub(t, 120000, "NGN", "ada@example.com")
	env := newTestEnv(t, defaultStubStore(), paystack.URL)
	token := env.token(t, studentID, "ada@example.com", model.RoleStudent)

	resp, parsed := env.verify(t, token, map[string]string{
		"reference": "ref-1", "course_id": courseID, "student_id": studentID,
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if parsed.Error == nil || parsed.Error.Code != services.KindAmountMismatch {
		t.Fatalf("expected AmountMismatch code, got %+v", parsed.Error)
	}

	var details struct {
		Expected int64 `json:"expected"`
		Got      int64 `json:"got"`
	}
	if err := json.Unmarshal(parsed.Error.Details, &details); err != nil {
		t.Fatalf("failed to decode details: %v", err)
	}
	if details.Expected != 500000 || details.Got != 120000 {
		t.Fatalf("unexpected detail values: %+v", details)
	}
}

func TestVerifyEndpointStoreErrorIsServerFault(t *testing.T) {
	store := defaultStubStore()
	store.settleErr = errors.New("connection refused")
	paystack := newPaystackStub(t, 500000, "NGN", "ada@example.com")
	env := newTestEnv(t, store, paystack.URL)
	token := env.token(t, studentID, "ada@example.com", model.RoleStudent)

	resp, parsed := env.verify(t, token, map[string]string{
		"reference": "ref-1", "course_id": courseID, "student_id": studentID,
	})
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if parsed.Success {
		t.Fatal("store failure must not report success")
	}
}
