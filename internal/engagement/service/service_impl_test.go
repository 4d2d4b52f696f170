package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/config"
	"github.com/edusocial/edusocial/internal/engagement/buffer"
	"github.com/edusocial/edusocial/internal/engagement/domain"
	"github.com/edusocial/edusocial/internal/migration"
	"github.com/edusocial/edusocial/internal/redislock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeLock struct {
	contended bool
	tryErr    error
	token     string
	released  []string
}

func (l *fakeLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l.tryErr != nil {
		return "", false, l.tryErr
	}
	if l.contended {
		return "", false, nil
	}
	l.token = "claim-1"
	return l.token, true, nil
}

func (l *fakeLock) Release(ctx context.Context, key, token string) error {
	l.released = append(l.released, token)
	return nil
}

var _ redislock.Lock = (*fakeLock)(nil)

type memBuffer struct {
	fields map[string]struct{}
}

func newMemBuffer() *memBuffer {
	return &memBuffer{fields: map[string]struct{}{}}
}

func (b *memBuffer) Add(ctx context.Context, field string) error {
	b.fields[field] = struct{}{}
	return nil
}

func (b *memBuffer) Scan(ctx context.Context, max int) ([]string, error) {
	out := make([]string, 0, len(b.fields))
	for field := range b.fields {
		out = append(out, field)
	}
	sort.Strings(out)
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (b *memBuffer) Remove(ctx context.Context, fields ...string) error {
	for _, field := range fields {
		delete(b.fields, field)
	}
	return nil
}

func (b *memBuffer) Len(ctx context.Context) (int64, error) {
	return int64(len(b.fields)), nil
}

var _ buffer.Buffer = (*memBuffer)(nil)

func newTestService(t *testing.T) (domain.Service, *memBuffer, *gorm.DB) {
	return newLockedService(t, nil)
}

func newLockedService(t *testing.T, lock redislock.Lock) (domain.Service, *memBuffer, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:engagement_svc_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.Run(gdb, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	buf := newMemBuffer()
	svc := NewService(Params{
		DB:     gdb,
		Log:    zap.NewNop(),
		Config: config.Config{Engagement: config.EngagementConfig{FlushBatchSize: 100, LockTTL: 30 * time.Second}},
		Buffer: buf,
		Locker: lock,
	})
	return svc, buf, gdb
}

func counterValue(t *testing.T, gdb *gorm.DB, targetID snowflake.ID, eventType domain.EventType) int64 {
	t.Helper()
	var count int64
	if err := gdb.Raw(`
		SELECT count FROM engagement_counters WHERE target_id = ? AND type = ?
	`, targetID, eventType).Scan(&count).Error; err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return count
}

func TestRecordBuffersEvent(t *testing.T) {
	svc, buf, _ := newTestService(t)

	if err := svc.Record(context.Background(), domain.EventTypeLike, 100, 7); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n, _ := buf.Len(context.Background()); n != 1 {
		t.Fatalf("buffer len = %d, want 1", n)
	}
}

func TestRecordValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, "boost", 100, 7); !errors.Is(err, domain.ErrInvalidType) {
		t.Fatalf("err = %v, want ErrInvalidType", err)
	}
	if err := svc.Record(ctx, domain.EventTypeLike, 0, 7); !errors.Is(err, domain.ErrInvalidTarget) {
		t.Fatalf("err = %v, want ErrInvalidTarget", err)
	}
	if err := svc.Record(ctx, domain.EventTypeVote, 100, 0); !errors.Is(err, domain.ErrInvalidActor) {
		t.Fatalf("err = %v, want ErrInvalidActor", err)
	}
}

func TestRecordCollapsesDuplicates(t *testing.T) {
	svc, buf, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.Record(ctx, domain.EventTypeLike, 100, 7); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if n, _ := buf.Len(ctx); n != 1 {
		t.Fatalf("buffer len = %d, want 1", n)
	}
}

func TestFlushAppliesCounters(t *testing.T) {
	svc, buf, gdb := newTestService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, domain.EventTypeLike, 100, 7); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, domain.EventTypeLike, 100, 8); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, domain.EventTypeVote, 200, 7); err != nil {
		t.Fatalf("record: %v", err)
	}

	flushed, err := svc.Flush(ctx, 0)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if flushed != 3 {
		t.Fatalf("flushed = %d, want 3", flushed)
	}
	if got := counterValue(t, gdb, 100, domain.EventTypeLike); got != 2 {
		t.Fatalf("likes = %d, want 2", got)
	}
	if got := counterValue(t, gdb, 200, domain.EventTypeVote); got != 1 {
		t.Fatalf("votes = %d, want 1", got)
	}
	if n, _ := buf.Len(ctx); n != 0 {
		t.Fatalf("buffer len = %d, want 0 after flush", n)
	}
}

func TestFlushReplayIsIdempotent(t *testing.T) {
	svc, buf, gdb := newTestService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, domain.EventTypeLike, 100, 7); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := svc.Flush(ctx, 0); err != nil {
		t.Fatalf("first flush: %v", err)
	}

	// Simulate a crash between the database commit and the buffer cleanup:
	// the same field is scanned and applied again.
	event := domain.Event{Type: domain.EventTypeLike, TargetID: 100, ActorID: 7}
	if err := buf.Add(ctx, event.Field()); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if _, err := svc.Flush(ctx, 0); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	if got := counterValue(t, gdb, 100, domain.EventTypeLike); got != 1 {
		t.Fatalf("likes = %d, want 1 after replay", got)
	}
}

func TestFlushDropsMalformedFields(t *testing.T) {
	svc, buf, gdb := newTestService(t)
	ctx := context.Background()

	if err := buf.Add(ctx, "garbage"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Record(ctx, domain.EventTypeLike, 100, 7); err != nil {
		t.Fatalf("record: %v", err)
	}

	flushed, err := svc.Flush(ctx, 0)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if flushed != 2 {
		t.Fatalf("flushed = %d, want 2", flushed)
	}
	if got := counterValue(t, gdb, 100, domain.EventTypeLike); got != 1 {
		t.Fatalf("likes = %d, want 1", got)
	}
	if n, _ := buf.Len(ctx); n != 0 {
		t.Fatalf("malformed field not drained")
	}
}

func TestFlushContendedLockSkips(t *testing.T) {
	lock := &fakeLock{contended: true}
	svc, buf, gdb := newLockedService(t, lock)
	ctx := context.Background()

	if err := svc.Record(ctx, domain.EventTypeLike, 100, 7); err != nil {
		t.Fatalf("record: %v", err)
	}

	flushed, err := svc.Flush(ctx, 0)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if flushed != 0 {
		t.Fatalf("flushed = %d, want 0 while another instance holds the claim", flushed)
	}
	if n, _ := buf.Len(ctx); n != 1 {
		t.Fatalf("buffer len = %d, want 1 untouched", n)
	}
	if got := counterValue(t, gdb, 100, domain.EventTypeLike); got != 0 {
		t.Fatalf("likes = %d, want 0", got)
	}
	if len(lock.released) != 0 {
		t.Fatalf("released a claim that was never won: %v", lock.released)
	}
}

func TestFlushReleasesLock(t *testing.T) {
	lock := &fakeLock{}
	svc, _, gdb := newLockedService(t, lock)
	ctx := context.Background()

	if err := svc.Record(ctx, domain.EventTypeLike, 100, 7); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := svc.Flush(ctx, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if got := counterValue(t, gdb, 100, domain.EventTypeLike); got != 1 {
		t.Fatalf("likes = %d, want 1", got)
	}
	if len(lock.released) != 1 || lock.released[0] != lock.token {
		t.Fatalf("released = %v, want exactly the claim token %q", lock.released, lock.token)
	}
}

func TestFlushLockErrorPropagates(t *testing.T) {
	lock := &fakeLock{tryErr: errors.New("redis down")}
	svc, buf, _ := newLockedService(t, lock)
	ctx := context.Background()

	if err := svc.Record(ctx, domain.EventTypeLike, 100, 7); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := svc.Flush(ctx, 0); err == nil {
		t.Fatal("expected lock error")
	}
	if n, _ := buf.Len(ctx); n != 1 {
		t.Fatalf("buffer len = %d, want 1 untouched", n)
	}
}

func TestFlushEmptyBuffer(t *testing.T) {
	svc, _, _ := newTestService(t)

	flushed, err := svc.Flush(context.Background(), 0)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if flushed != 0 {
		t.Fatalf("flushed = %d, want 0", flushed)
	}
}

func TestTrendingOrdersByCount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	actors := []snowflake.ID{7, 8, 9}
	for _, actor := range actors {
		if err := svc.Record(ctx, domain.EventTypeLike, 100, actor); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := svc.Record(ctx, domain.EventTypeLike, 200, 7); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := svc.Flush(ctx, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}

	counters, err := svc.Trending(ctx, 10)
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(counters) != 2 {
		t.Fatalf("counters = %d, want 2", len(counters))
	}
	if counters[0].TargetID != 100 || counters[0].Count != 3 {
		t.Fatalf("top counter = %+v", counters[0])
	}
}
