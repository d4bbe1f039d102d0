package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/fintrack/internal/model"
)

func TestCSRFMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
	}{
		{"GET from unknown origin passes", http.MethodGet, "https://evil.example.com", http.StatusOK},
		{"OPTIONS passes", http.MethodOptions, "https://evil.example.com", http.StatusOK},
		{"POST from allowed origin passes", http.MethodPost, "http://localhost:5173", http.StatusOK},
		{"POST without origin passes", http.MethodPost, "", http.StatusOK},
		{"POST from unknown origin is rejected", http.MethodPost, "https://evil.example.com", http.StatusForbidden},
		{"DELETE from unknown origin is rejected", http.MethodDelete, "https://evil.example.com", http.StatusForbidden},
		{"PUT from null origin is rejected", http.MethodPut, "null", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(testOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/v1/categories/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode: %v", err)
				}
				if body.Code != model.ErrCodeForbiddenOrigin {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeForbiddenOrigin)
				}
			}
		})
	}
}
