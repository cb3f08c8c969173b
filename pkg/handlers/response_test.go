package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ekaya-inc/herdwise/pkg/models"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{"bad request", http.StatusBadRequest, "invalid_request", "request body must be valid JSON"},
		{"empty result", http.StatusUnprocessableEntity, "empty_result", "query returned no rows"},
		{"unavailable", http.StatusServiceUnavailable, "connectivity_failed", "store unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			if err := ErrorResponse(w, tt.statusCode, tt.errorCode, tt.message); err != nil {
				t.Fatalf("ErrorResponse returned error: %v", err)
			}

			if w.Code != tt.statusCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.statusCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body ErrorBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if body != (ErrorBody{Error: tt.errorCode, Message: tt.message}) {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestWriteJSON_PipelineResult(t *testing.T) {
	result := &models.PipelineResult{
		RequestID: "req-1",
		Success:   true,
		State:     models.StateResponseBuilt,
		Question:  "Which barns had fever above 3%?",
		Backend:   "local",
		SQL:       "SELECT barn_name FROM swine_alert WHERE fever_percent > 3 LIMIT 10;",
		Results: &models.ResultSet{
			Columns: []string{"barn_name"},
			Rows:    []map[string]any{{"barn_name": "B1"}},
		},
		Narrative: "Only **B1** crossed 3%.",
		Elapsed:   1500 * time.Millisecond,
	}

	w := httptest.NewRecorder()
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", w.Code)
	}

	raw := w.Body.String()
	for _, field := range []string{`"request_id":"req-1"`, `"state":"response_built"`, `"backend":"local"`, `"elapsed_ns":1500000000`} {
		if !strings.Contains(raw, field) {
			t.Errorf("response missing %s: %s", field, raw)
		}
	}
	for _, field := range []string{`"chart"`, `"error"`} {
		if strings.Contains(raw, field) {
			t.Errorf("response must omit empty %s: %s", field, raw)
		}
	}
}

func TestWriteJSON_UnencodableData(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteJSON(w, http.StatusOK, make(chan int)); err == nil {
		t.Error("expected error for unencodable data, got nil")
	}
}
