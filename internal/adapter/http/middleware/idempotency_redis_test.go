package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	redisRepo "github.com/iho/agencyledger/internal/adapter/repository/redis"
)

func newRedisIdempotency(t *testing.T) (*IdempotencyMiddleware, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewIdempotencyMiddleware(redisRepo.NewIdempotencyStore(client), time.Hour, nil, zerolog.Nop()), mr
}

func TestIdempotencyMiddleware_ReleasesKeyWhenClientDisconnects(t *testing.T) {
	mw, mr := newRedisIdempotency(t)

	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	req := postPayment("key-gone").WithContext(ctx)
	handler = withCancelBeforeReturn(handler, cancel)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected claim to be released, still holding %v", keys)
	}

	retry := httptest.NewRecorder()
	handler.ServeHTTP(retry, postPayment("key-gone"))
	if retry.Code == http.StatusConflict || calls != 2 {
		t.Fatalf("expected retry to reach handler, got code=%d calls=%d", retry.Code, calls)
	}
}

func TestIdempotencyMiddleware_StoresResponseAfterClientDisconnects(t *testing.T) {
	mw, _ := newRedisIdempotency(t)

	calls := 0
	var handler http.Handler = mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"pay-1"}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	withCancelBeforeReturn(handler, cancel).ServeHTTP(httptest.NewRecorder(), postPayment("key-late").WithContext(ctx))

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, postPayment("key-late"))
	if calls != 1 || replay.Code != http.StatusCreated || replay.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected committed response to replay, got code=%d calls=%d", replay.Code, calls)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnPanic(t *testing.T) {
	mw, mr := newRedisIdempotency(t)

	handler := Recovery(zerolog.Nop())(mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postPayment("key-panic"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 from recovery, got %d", rr.Code)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected claim to be released after panic, still holding %v", keys)
	}
}

// withCancelBeforeReturn cancels the request context once the inner handler has written,
// the way a client hanging up mid-request does, before the idempotency store is touched again.
func withCancelBeforeReturn(next http.Handler, cancel context.CancelFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&cancelOnWrite{ResponseWriter: w, cancel: cancel}, r)
	})
}

type cancelOnWrite struct {
	http.ResponseWriter
	cancel context.CancelFunc
}

func (c *cancelOnWrite) WriteHeader(status int) {
	c.cancel()
	c.ResponseWriter.WriteHeader(status)
}
