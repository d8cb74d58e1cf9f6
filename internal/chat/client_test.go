package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docschat/docschat/internal/testutil"
)

func TestClient_ListProviders_VCR(t *testing.T) {
	r := testutil.NewVCRRecorder(t, "providers")
	client := NewClient(WithHTTPClient(testutil.VCRHTTPClient(r)))

	resp, err := client.ListProviders(context.Background())
	if err != nil {
		t.Fatalf("ListProviders failed: %v", err)
	}

	if len(resp.Providers) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(resp.Providers))
	}
	if resp.Providers[0].ID != "anthropic" || !resp.Providers[0].SupportsStreaming {
		t.Errorf("unexpected first provider: %+v", resp.Providers[0])
	}
	if resp.Providers[2].IsEnabled {
		t.Error("ibm provider should be disabled")
	}
	if resp.DefaultSelection == nil || resp.DefaultSelection.ProviderID != "anthropic" {
		t.Errorf("unexpected default selection: %+v", resp.DefaultSelection)
	}
}

func TestClient_ModelsFor_VCR(t *testing.T) {
	r := testutil.NewVCRRecorder(t, "providers")
	client := NewClient(WithHTTPClient(testutil.VCRHTTPClient(r)))

	resp, err := client.ModelsFor(context.Background(), "anthropic")
	if err != nil {
		t.Fatalf("ModelsFor failed: %v", err)
	}
	if resp.Provider != "anthropic" || len(resp.Models) != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !resp.Models[0].IsDefault {
		t.Error("first model should be flagged default")
	}

	if _, err := client.ModelsFor(context.Background(), "unknown"); err == nil {
		t.Error("expected error for unknown provider")
	} else if !strings.Contains(err.Error(), "Provider not found") {
		t.Errorf("error %q should carry the server message", err)
	}
}

func TestClient_ErrorFromResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{
			name:    "server-supplied message preferred",
			status:  http.StatusBadRequest,
			body:    `{"error":"Message is required"}`,
			wantSub: "Message is required",
		},
		{
			name:    "non-JSON body falls back to status text",
			status:  http.StatusBadGateway,
			body:    "<html>gateway</html>",
			wantSub: "Bad Gateway",
		},
		{
			name:    "empty error field falls back to status text",
			status:  http.StatusInternalServerError,
			body:    `{"error":""}`,
			wantSub: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(WithBaseURL(srv.URL))
			_, err := client.Complete(context.Background(), &ChatRequest{Message: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"OK"}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}
