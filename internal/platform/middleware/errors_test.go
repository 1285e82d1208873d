package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/edtriage/triage/internal/platform/ml"
)

type codedErr struct{}

func (codedErr) Error() string     { return "patient already has an open case" }
func (codedErr) ErrorCode() string { return "state_conflict" }

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"http error", echo.NewHTTPError(http.StatusNotFound, "patient not found"), 404, "not_found"},
		{"coded internal", &echo.HTTPError{Code: 409, Message: "conflict", Internal: codedErr{}}, 409, "state_conflict"},
		{"validation", validation.Errors{"FullName": errors.New("cannot be blank")}, 400, "validation_failed"},
		{"timeout", fmt.Errorf("risk: %w", ml.ErrInferenceTimeout), 503, "inference_timeout"},
		{"inference", fmt.Errorf("%w: boom", ml.ErrInference), 502, "inference_failed"},
		{"schema", ml.ErrSchemaMismatch, 500, "schema_mismatch"},
		{"empty", ml.ErrEmptyInput, 400, "empty_input"},
		{"shape", ml.ErrInvalidInputShape, 400, "invalid_input_shape"},
		{"unknown", errors.New("db exploded"), 500, "internal_server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Render(tt.err)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if body.Code != tt.code {
				t.Errorf("code = %s, want %s", body.Code, tt.code)
			}
		})
	}
}

func TestRender_UnknownErrorHidesMessage(t *testing.T) {
	_, body := Render(errors.New("password=hunter2"))
	if body.Message != "internal server error" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestRender_SchemaMismatchHidesDetails(t *testing.T) {
	err := fmt.Errorf("%w: open artifact /srv/models/risk_model.json: no such file", ml.ErrSchemaMismatch)

	status, body := Render(err)
	if status != http.StatusInternalServerError || body.Code != "schema_mismatch" {
		t.Fatalf("unexpected response %d %s", status, body.Code)
	}
	if body.Message != "internal server error" {
		t.Errorf("unexpected message %q", body.Message)
	}

	var he *echo.HTTPError
	if !errors.As(InferenceHTTPError(err), &he) {
		t.Fatal("expected http error")
	}
	if he.Message != "internal server error" {
		t.Errorf("unexpected http error message %v", he.Message)
	}
	_, body = Render(he)
	if body.Code != "schema_mismatch" || body.Message != "internal server error" {
		t.Errorf("unexpected rendered body %+v", body)
	}
}

func TestRender_ValidationDetails(t *testing.T) {
	err := &echo.HTTPError{
		Code:     http.StatusBadRequest,
		Message:  "invalid patient",
		Internal: validation.Errors{"FullName": errors.New("cannot be blank"), "age": nil},
	}
	_, body := Render(err)
	if body.Details["full_name"] != "cannot be blank" {
		t.Errorf("unexpected details %v", body.Details)
	}
	if _, ok := body.Details["age"]; ok {
		t.Error("nil field errors must be dropped")
	}
}

func TestErrorHandler_RetryAfter(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/triage-cases", nil), rec)

	ErrorHandler(zerolog.Nop())(fmt.Errorf("department: %w", ml.ErrInferenceTimeout), c)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "inference_timeout" {
		t.Errorf("unexpected code %s", body.Code)
	}
}

func TestErrorHandler_Committed(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.String(http.StatusOK, "done")

	ErrorHandler(zerolog.Nop())(errors.New("late"), c)
	if rec.Code != http.StatusOK {
		t.Errorf("committed response must not be rewritten, got %d", rec.Code)
	}
}

func TestInferenceHTTPError(t *testing.T) {
	var he *echo.HTTPError
	if !errors.As(InferenceHTTPError(ml.ErrInference), &he) || he.Code != http.StatusBadGateway {
		t.Errorf("expected 502 http error, got %v", he)
	}
	plain := errors.New("other")
	if InferenceHTTPError(plain) != plain {
		t.Error("non-inference errors must pass through")
	}
}
