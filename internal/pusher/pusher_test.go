package pusher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/promship/promship/push"
)

// gatewayStub answers each request with the next status from script (the last
// entry repeats) and records methods.
type gatewayStub struct {
	mu      sync.Mutex
	script  []int
	methods []string
}

func (g *gatewayStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		status := g.script[0]
		if len(g.script) > 1 {
			g.script = g.script[1:]
		}
		g.methods = append(g.methods, r.Method)
		g.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (g *gatewayStub) seen() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.methods))
	copy(out, g.methods)
	return out
}

func newPusher(t *testing.T, gatewayURL string, opts Options) *Pusher {
	t.Helper()

	client, err := push.New("bridge", push.WithGateway(gatewayURL))
	if err != nil {
		t.Fatalf("push.New: %v", err)
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "bridge_up", Help: "test gauge"})
	g.Set(1)
	reg := prometheus.NewRegistry()
	reg.MustRegister(g)

	if opts.RetryInitial == 0 {
		opts.RetryInitial = time.Millisecond
	}
	if opts.RetryMaxElapsed == 0 {
		opts.RetryMaxElapsed = time.Second
	}
	return New(client, reg, opts)
}

func TestPushOnceSucceeds(t *testing.T) {
	stub := &gatewayStub{script: []int{http.StatusOK}}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	p := newPusher(t, srv.URL, Options{Mode: "replace"})
	if err := p.PushOnce(context.Background()); err != nil {
		t.Fatalf("PushOnce: %v", err)
	}

	methods := stub.seen()
	if len(methods) != 1 || methods[0] != http.MethodPut {
		t.Errorf("gateway saw %v, want one PUT", methods)
	}
}

func TestPushOnceAddModeUsesPost(t *testing.T) {
	stub := &gatewayStub{script: []int{http.StatusOK}}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	p := newPusher(t, srv.URL, Options{Mode: "add"})
	if err := p.PushOnce(context.Background()); err != nil {
		t.Fatalf("PushOnce: %v", err)
	}
	if methods := stub.seen(); len(methods) != 1 || methods[0] != http.MethodPost {
		t.Errorf("gateway saw %v, want one POST", methods)
	}
}

func TestPushOnceRetriesServerErrors(t *testing.T) {
	stub := &gatewayStub{script: []int{
		http.StatusBadGateway,
		http.StatusInternalServerError,
		http.StatusOK,
	}}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	p := newPusher(t, srv.URL, Options{Mode: "replace"})
	if err := p.PushOnce(context.Background()); err != nil {
		t.Fatalf("PushOnce: %v", err)
	}
	if got := len(stub.seen()); got != 3 {
		t.Errorf("gateway saw %d requests, want 3 (two retries)", got)
	}
}

func TestPushOnceDoesNotRetryClientErrors(t *testing.T) {
	stub := &gatewayStub{script: []int{http.StatusBadRequest}}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	p := newPusher(t, srv.URL, Options{Mode: "replace"})
	err := p.PushOnce(context.Background())
	if !errors.Is(err, push.ErrClientError) {
		t.Fatalf("got %v, want ErrClientError", err)
	}
	if got := len(stub.seen()); got != 1 {
		t.Errorf("gateway saw %d requests, want exactly 1", got)
	}
}

func TestRunPushesOnIntervalAndDeletesOnStop(t *testing.T) {
	stub := &gatewayStub{script: []int{http.StatusOK}}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	p := newPusher(t, srv.URL, Options{
		Mode:         "replace",
		Interval:     20 * time.Millisecond,
		DeleteOnStop: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// Wait for the immediate push plus at least one tick.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(stub.seen()) < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	methods := stub.seen()
	if len(methods) < 3 {
		t.Fatalf("gateway saw %v, want at least two PUTs and a DELETE", methods)
	}
	if last := methods[len(methods)-1]; last != http.MethodDelete {
		t.Errorf("last request = %q, want DELETE on shutdown", last)
	}
	for _, m := range methods[:len(methods)-1] {
		if m != http.MethodPut {
			t.Errorf("push used %q, want PUT", m)
		}
	}
}
