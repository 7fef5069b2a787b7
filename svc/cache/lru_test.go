package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Hemasri-01/pastebin/pkg/domain"
)

func TestLRURefusesViewLimitedPastes(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	n := int64(5)
	l.Set(context.Background(), &domain.Paste{ID: "limited", Content: "x", RemainingViews: &n}, time.Minute)
	if got := l.Get(context.Background(), "limited"); got != nil {
		t.Error("view-limited paste must not be cached")
	}
}

func TestLRUStoresUnlimitedPastes(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	l.Set(context.Background(), &domain.Paste{ID: "open", Content: "hello"}, time.Minute)
	got := l.Get(context.Background(), "open")
	if got == nil || got.Content != "hello" {
		t.Errorf("cache miss or wrong content: %+v", got)
	}
}

func TestLRUZeroTTLMeansNoDeadline(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	l.Set(context.Background(), &domain.Paste{ID: "forever", Content: "y"}, 0)
	if got := l.Get(context.Background(), "forever"); got == nil {
		t.Error("entry with no deadline was evicted")
	}
}

func TestLRUEvictsPastDeadline(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	l.Set(context.Background(), &domain.Paste{ID: "brief", Content: "z"}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if got := l.Get(context.Background(), "brief"); got != nil {
		t.Error("stale entry served past its deadline")
	}
}

func TestLRUDelete(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	l.Set(context.Background(), &domain.Paste{ID: "gone", Content: "w"}, time.Minute)
	l.Delete("gone")
	if got := l.Get(context.Background(), "gone"); got != nil {
		t.Error("deleted entry still served")
	}
}

func TestNewLRUValidatesSize(t *testing.T) {
	if _, err := NewLRU(0); err == nil {
		t.Error("zero size should be rejected")
	}
	if _, err := NewLRU(1000001); err == nil {
		t.Error("oversized cache should be rejected")
	}
}
