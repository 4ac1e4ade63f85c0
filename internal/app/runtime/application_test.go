package runtime

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/R3E-Network/rental_settlement/internal/app"
	"github.com/R3E-Network/rental_settlement/internal/config"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
	"github.com/R3E-Network/rental_settlement/pkg/testutil"
)

func TestServeAndShutdown(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Audit.Schedule = "@every 1h"
	cfg.Ledger.Timeout = time.Second

	application, err := NewApplicationFromConfig(cfg, logger.NewWithOutput("runtime", &bytes.Buffer{}),
		app.Options{Ledger: testutil.Confirming("0x1")})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, ln) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
