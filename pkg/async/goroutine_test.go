package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/folio/pkg/observability"
)

// syncBuffer guards a bytes.Buffer shared between the test and the task goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func loggedContext() (context.Context, *syncBuffer) {
	out := &syncBuffer{}
	logger := observability.NewLogger(observability.DebugLevel, out)
	return observability.WithLogger(context.Background(), logger), out
}

func TestSafeGo_Success(t *testing.T) {
	ctx, out := loggedContext()
	var executed atomic.Bool

	SafeGo(ctx, time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	assert.Eventually(t, executed.Load, time.Second, 5*time.Millisecond)
	assert.Empty(t, out.String())
}

func TestSafeGo_LogsError(t *testing.T) {
	ctx, out := loggedContext()

	SafeGo(ctx, time.Second, "test task", func(ctx context.Context) error {
		return errors.New("sink unavailable")
	})

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "sink unavailable") && strings.Contains(s, `"task":"test task"`)
	}, time.Second, 5*time.Millisecond)
}

func TestSafeGo_Timeout(t *testing.T) {
	var canceled atomic.Bool

	SafeGo(context.Background(), 20*time.Millisecond, "test task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			canceled.Store(true)
			return ctx.Err()
		}
	})

	assert.Eventually(t, canceled.Load, time.Second, 5*time.Millisecond)
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	ctx, out := loggedContext()

	SafeGo(ctx, time.Second, "test task", func(ctx context.Context) error {
		panic("test panic")
	})

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "PANIC recovered")
	}, time.Second, 5*time.Millisecond)
}

func TestSafeGo_DetachedFromCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()
	var ran atomic.Bool

	SafeGo(context.WithoutCancel(parent), time.Second, "test task", func(ctx context.Context) error {
		if ctx.Err() == nil {
			ran.Store(true)
		}
		return nil
	})

	assert.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)
}

