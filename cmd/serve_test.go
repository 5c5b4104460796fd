package cmd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestServe_HealthAndShutdown(t *testing.T) {
	resetExecTestGlobals(t)
	origTTL := serveIdleTTL
	t.Cleanup(func() { serveIdleTTL = origTTL })
	serveIdleTTL = time.Hour

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, "s3cret") }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/healthz")
	if err != nil {
		cancel()
		t.Fatalf("GET /healthz: %v", err)
	}
	var health struct {
		OK bool `json:"ok"`
	}
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil || !health.OK {
		cancel()
		t.Fatalf("unexpected health response: %+v, %v", health, err)
	}

	resp, err = http.Post(base+"/v0/sessions", "", nil)
	if err != nil {
		cancel()
		t.Fatalf("POST /v0/sessions: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		cancel()
		t.Fatalf("status = %d, want 401 without token", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
