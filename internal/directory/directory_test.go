package directory

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/httputil"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.NewWithOutput("directory", &bytes.Buffer{})
}

func newHTTPDirectory(t *testing.T, timeout time.Duration, handler http.HandlerFunc) *HTTPDirectory {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := httputil.NewServiceClient(httputil.ServiceClientConfig{BaseURL: server.URL, MaxRetries: -1})
	return NewHTTPDirectory(client, timeout, quietLogger())
}

func TestHTTPDirectoryFound(t *testing.T) {
	d := newHTTPDirectory(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/profile/7", r.URL.Path)
		w.Write([]byte(`{"status":"success","data":{"id":7,"email":"owner@realestate.io","walletAddress":"0xabc"}}`))
	})

	p, ok := d.Lookup(context.Background(), 7)
	require.True(t, ok)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "owner@realestate.io", p.Email)
	assert.Equal(t, "0xabc", p.WalletAddress)
	assert.False(t, p.Placeholder)
}

func TestHTTPDirectoryAbsent(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		},
		"no data": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"success"}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := newHTTPDirectory(t, time.Second, handler).Lookup(context.Background(), 1)
			assert.False(t, ok)
		})
	}
}

func TestHTTPDirectoryTimeout(t *testing.T) {
	release := make(chan struct{})
	d := newHTTPDirectory(t, 20*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	_, ok := d.Lookup(context.Background(), 1)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolveFallsBackToPlaceholder(t *testing.T) {
	p := Resolve(context.Background(), Absent, 9, "tenant")
	assert.True(t, p.Placeholder)
	assert.Equal(t, "tenant@example.com", p.Email)
	assert.Equal(t, "0x9", p.WalletAddress)

	p = Resolve(context.Background(), nil, 9, "owner")
	assert.Equal(t, "owner@example.com", p.Email)

	found := LookupFunc(func(_ context.Context, id int64) (settlement.Profile, bool) {
		return settlement.Profile{ID: id, Email: "real@x.io"}, true
	})
	p = Resolve(context.Background(), found, 9, "owner")
	assert.Equal(t, "real@x.io", p.Email)
	assert.False(t, p.Placeholder)
}

type mapCache struct {
	mu      sync.Mutex
	entries map[int64]settlement.Profile
	failGet bool
	failSet bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[int64]settlement.Profile{}}
}

func (c *mapCache) Get(_ context.Context, id int64) (settlement.Profile, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return settlement.Profile{}, false, errors.New("cache down")
	}
	p, ok := c.entries[id]
	return p, ok, nil
}

func (c *mapCache) Set(_ context.Context, p settlement.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("cache down")
	}
	c.entries[p.ID] = p
	return nil
}

func TestCachedDirectory(t *testing.T) {
	calls := 0
	inner := LookupFunc(func(_ context.Context, id int64) (settlement.Profile, bool) {
		calls++
		if id == 404 {
			return settlement.Profile{}, false
		}
		return settlement.Profile{ID: id, Email: "u@x.io"}, true
	})
	cache := newMapCache()
	d := NewCachedDirectory(inner, cache, time.Second, quietLogger())

	p, ok := d.Lookup(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, "u@x.io", p.Email)
	_, ok = d.Lookup(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, 1, calls, "second lookup should be served from cache")

	_, ok = d.Lookup(context.Background(), 404)
	assert.False(t, ok)
	_, cached, _ := cache.Get(context.Background(), 404)
	assert.False(t, cached, "absent profiles are not cached")
}

func TestCachedDirectoryIgnoresCacheFailures(t *testing.T) {
	inner := LookupFunc(func(_ context.Context, id int64) (settlement.Profile, bool) {
		return settlement.Profile{ID: id, Email: "u@x.io"}, true
	})
	cache := newMapCache()
	cache.failGet, cache.failSet = true, true

	p, ok := NewCachedDirectory(inner, cache, time.Second, quietLogger()).Lookup(context.Background(), 3)
	require.True(t, ok)
	assert.Equal(t, int64(3), p.ID)
}

// stallingCache blocks every call for delay without looking at its context.
type stallingCache struct {
	delay time.Duration
}

func (c stallingCache) Get(context.Context, int64) (settlement.Profile, bool, error) {
	time.Sleep(c.delay)
	return settlement.Profile{}, false, nil
}

func (c stallingCache) Set(context.Context, settlement.Profile) error {
	time.Sleep(c.delay)
	return nil
}

func TestCachedDirectoryBoundedWhenCacheStalls(t *testing.T) {
	inner := LookupFunc(func(_ context.Context, id int64) (settlement.Profile, bool) {
		return settlement.Profile{ID: id, Email: "u@x.io"}, true
	})
	d := NewCachedDirectory(inner, stallingCache{delay: 2 * time.Second}, 50*time.Millisecond, quietLogger())

	start := time.Now()
	tenant := Resolve(context.Background(), d, 1, "tenant")
	owner := Resolve(context.Background(), d, 2, "owner")
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "both lookups must respect the directory timeout")
	assert.True(t, tenant.Placeholder)
	assert.True(t, owner.Placeholder)
}

func TestCachedDirectoryHonoursCallerDeadline(t *testing.T) {
	inner := LookupFunc(func(ctx context.Context, _ int64) (settlement.Profile, bool) {
		<-ctx.Done()
		return settlement.Profile{}, false
	})
	d := NewCachedDirectory(inner, newMapCache(), time.Minute, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, ok := d.Lookup(ctx, 9)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}
