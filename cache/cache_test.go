package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/webpeel/webpeel/models"
)

func testResult(content string) *models.FetchResult {
	return &models.FetchResult{Content: content, Method: models.MethodDirect, StatusCode: 200}
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("https://example.com/page")
	b := Key("https://example.com/page")
	if a != b {
		t.Errorf("same URL produced different keys: %s vs %s", a, b)
	}
	if a == Key("https://example.com/other") {
		t.Error("different URLs produced the same key")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestGetMissOnEmptyCache(t *testing.T) {
	c := New(10, time.Minute, time.Hour)
	defer c.Stop()

	if res, state := c.Get(Key("https://example.com")); state != Miss || res != nil {
		t.Errorf("Get on empty cache = (%v, %v), want (nil, Miss)", res, state)
	}
}

func TestFreshThenStaleThenMiss(t *testing.T) {
	c := New(10, 50*time.Millisecond, 150*time.Millisecond)
	defer c.Stop()

	key := Key("https://example.com")
	c.Set(key, testResult("hello"))

	res, state := c.Get(key)
	if state != Fresh {
		t.Fatalf("state right after Set = %v, want Fresh", state)
	}
	if res.Content != "hello" {
		t.Errorf("content = %q, want %q", res.Content, "hello")
	}

	time.Sleep(70 * time.Millisecond)
	res, state = c.Get(key)
	if state != Stale {
		t.Fatalf("state past fresh window = %v, want Stale", state)
	}
	if res == nil {
		t.Fatal("stale entry must still return the result")
	}

	time.Sleep(100 * time.Millisecond)
	if res, state = c.Get(key); state != Miss || res != nil {
		t.Errorf("state past stale horizon = (%v, %v), want (nil, Miss)", res, state)
	}
}

func TestSetEvictsAtCapacity(t *testing.T) {
	c := New(3, time.Minute, time.Hour)
	defer c.Stop()

	for i := 0; i < 5; i++ {
		c.Set(Key(fmt.Sprintf("https://example.com/%d", i)), testResult("x"))
	}

	c.mu.RLock()
	n := len(c.store)
	c.mu.RUnlock()
	if n != 3 {
		t.Errorf("store size = %d, want 3 (capacity)", n)
	}
}

func TestSetOverwriteDoesNotEvict(t *testing.T) {
	c := New(2, time.Minute, time.Hour)
	defer c.Stop()

	keyA := Key("https://a.example.com")
	keyB := Key("https://b.example.com")
	c.Set(keyA, testResult("a1"))
	c.Set(keyB, testResult("b"))
	c.Set(keyA, testResult("a2"))

	if res, state := c.Get(keyA); state != Fresh || res.Content != "a2" {
		t.Errorf("overwritten entry = (%v, %v), want (a2, Fresh)", res, state)
	}
	if _, state := c.Get(keyB); state != Fresh {
		t.Error("overwrite evicted an unrelated entry")
	}
}

func TestMarkRevalidatingTryLock(t *testing.T) {
	c := New(10, time.Minute, time.Hour)
	defer c.Stop()

	key := Key("https://example.com")
	if !c.MarkRevalidating(key) {
		t.Fatal("first MarkRevalidating should win")
	}
	if c.MarkRevalidating(key) {
		t.Error("second MarkRevalidating should lose while the first holds the lock")
	}
	if !c.MarkRevalidating(Key("https://other.example.com")) {
		t.Error("lock on one key must not block other keys")
	}

	c.DoneRevalidating(key)
	if !c.MarkRevalidating(key) {
		t.Error("MarkRevalidating should win again after DoneRevalidating")
	}
}
