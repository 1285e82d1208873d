package department

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func doClassify(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage/classify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, h.Classify(e.NewContext(req, rec))
}

func TestHandler_Classify_Override(t *testing.T) {
	h := NewHandler(newTestClassifier(t, &fakeEmbedder{query: unit(1)}, nil))
	rec, err := doClassify(t, h, `{"symptoms":"Patient is unconscious"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["input_text"] != "Patient is unconscious" {
		t.Errorf("input_text = %v", got["input_text"])
	}
	if got["assigned_department"] != Emergency {
		t.Errorf("assigned_department = %v", got["assigned_department"])
	}
	if got["confidence"] != 1.0 {
		t.Errorf("confidence = %v", got["confidence"])
	}
	if got["triage_level"] != TriageLevelCritical {
		t.Errorf("triage_level = %v", got["triage_level"])
	}
}

func TestHandler_Classify_Similarity(t *testing.T) {
	h := NewHandler(newTestClassifier(t, &fakeEmbedder{query: unit(6)}, nil))
	rec, err := doClassify(t, h, `{"symptoms":"twisted my ankle, cannot walk"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got["assigned_department"] != Orthopedics {
		t.Errorf("assigned_department = %v", got["assigned_department"])
	}
	if _, ok := got["triage_level"]; ok {
		t.Error("triage_level should be omitted without an override")
	}
}

func TestHandler_Classify_Blank(t *testing.T) {
	h := NewHandler(newTestClassifier(t, &fakeEmbedder{query: unit(1)}, nil))
	_, err := doClassify(t, h, `{"symptoms":"   "}`)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Classify_BadBody(t *testing.T) {
	h := NewHandler(newTestClassifier(t, &fakeEmbedder{query: unit(1)}, nil))
	_, err := doClassify(t, h, `{"symptoms":`)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Classify_InferenceFailure(t *testing.T) {
	emb := &fakeEmbedder{query: unit(1)}
	h := NewHandler(newTestClassifier(t, emb, nil))
	emb.err = errors.New("upstream stalled")
	_, err := doClassify(t, h, `{"symptoms":"sore throat"}`)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
}
