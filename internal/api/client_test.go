package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientListAndDelete(t *testing.T) {
	var gotForm url.Values
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_markers":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"id":100000,"text":"Tower A","lat":"40.7","lon":"-74.0","user":"alice","url":null}]`))
		case "/delete":
			_ = r.ParseForm()
			gotForm = r.PostForm
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte("Deleted"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Setenv(apiTokenEnvKey, "machine-token")
	client := NewClient(srv.URL + "/")

	markers, err := client.ListMarkers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(markers) != 1 || markers[0].ID != 100000 || markers[0].ImageRef != nil {
		t.Fatalf("unexpected markers %+v", markers)
	}

	if err := client.DeleteMarker(context.Background(), 100000); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotForm.Get("id") != "100000" {
		t.Fatalf("expected id form field, got %v", gotForm)
	}
	if gotAuth != "Bearer machine-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestClientDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/info" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal error","code":"internal","error_code":4002}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Error"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	_, err := client.Info(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 500 || apiErr.ErrorCode != 4002 || apiErr.Code != "internal" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}

	err = client.DeleteMarker(context.Background(), 1)
	if !errors.As(err, &apiErr) || apiErr.Message != "Error" {
		t.Fatalf("expected plain text error message, got %v", err)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		err        *APIError
		auth       bool
		fault      bool
		structured bool
		message    string
	}{
		{err: &APIError{Status: 401, Code: "unauthorized", Message: "sign in required"}, auth: true, structured: true, message: "unauthorized: sign in required"},
		{err: &APIError{Status: 500, Message: "Error"}, fault: true, message: "Error"},
		{err: &APIError{Status: 404}, message: "api error: 404 Not Found"},
	}
	for _, tt := range tests {
		if got := tt.err.AuthFailure(); got != tt.auth {
			t.Fatalf("%v: AuthFailure() = %v", tt.err, got)
		}
		if got := tt.err.ServerFault(); got != tt.fault {
			t.Fatalf("%v: ServerFault() = %v", tt.err, got)
		}
		if got := tt.err.Structured(); got != tt.structured {
			t.Fatalf("%v: Structured() = %v", tt.err, got)
		}
		if got := tt.err.Error(); got != tt.message {
			t.Fatalf("Error() = %q, want %q", got, tt.message)
		}
	}
}
