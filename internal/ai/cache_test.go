package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingClassifier struct {
	calls   atomic.Int32
	fail    bool
	release chan struct{}
}

func (c *countingClassifier) Classify(ctx context.Context, text string) (*Intent, error) {
	c.calls.Add(1)
	if c.release != nil {
		<-c.release
	}
	if c.fail {
		return nil, errors.New("upstream down")
	}
	return &Intent{Action: ActionTaken, AIMessage: text}, nil
}

func TestCacheKey_Normalizes(t *testing.T) {
	if CacheKey("  Tomei  ") != CacheKey("tomei") {
		t.Fatalf("expected trimmed lower-cased texts to share a key")
	}
	if CacheKey("tomei") == CacheKey("adiar") {
		t.Fatalf("expected different texts to have different keys")
	}
}

func TestCache_PutIfAbsentKeepsFirst(t *testing.T) {
	cache := NewCache(4)
	first := &Intent{Action: ActionTaken}
	second := &Intent{Action: ActionSkip}

	if got := cache.PutIfAbsent("k", first); got != first {
		t.Fatalf("expected first insert to be stored")
	}
	if got := cache.PutIfAbsent("k", second); got != first {
		t.Fatalf("expected existing value to win, got %v", got.Action)
	}
	if got, _ := cache.Get("k"); got != first {
		t.Fatalf("expected cached value to be the first insert")
	}
}

func TestCache_EvictsOldest(t *testing.T) {
	cache := NewCache(2)
	cache.PutIfAbsent("a", &Intent{})
	cache.PutIfAbsent("b", &Intent{})
	cache.PutIfAbsent("c", &Intent{})

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
	if _, ok := cache.Get("a"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Fatalf("expected newest entry to be present")
	}
}

func TestCache_HitsDoNotDelayEviction(t *testing.T) {
	cache := NewCache(2)
	cache.PutIfAbsent("a", &Intent{})
	cache.PutIfAbsent("b", &Intent{})
	if _, ok := cache.Get("a"); !ok {
		t.Fatalf("expected a to be cached")
	}
	cache.PutIfAbsent("c", &Intent{})

	if _, ok := cache.Get("a"); ok {
		t.Fatalf("expected a to be evicted first even after a hit")
	}
	if _, ok := cache.Get("b"); !ok {
		t.Fatalf("expected b to be kept")
	}
}

func TestCachedClassifier_MemoizesNormalizedText(t *testing.T) {
	upstream := &countingClassifier{}
	classifier := NewCachedClassifier(upstream, 8)
	ctx := context.Background()

	first, err := classifier.Classify(ctx, "Taken")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := classifier.Classify(ctx, "  taken ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same cached intent")
	}
	if upstream.calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", upstream.calls.Load())
	}
}

func TestCachedClassifier_CollapsesConcurrentCalls(t *testing.T) {
	upstream := &countingClassifier{release: make(chan struct{})}
	classifier := NewCachedClassifier(upstream, 8)

	var wg sync.WaitGroup
	results := make([]*Intent, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			intent, err := classifier.Classify(context.Background(), "snooze please")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = intent
		}(i)
	}

	// Let the callers pile up behind the first request
	time.Sleep(50 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	for i, intent := range results {
		if intent != results[0] {
			t.Fatalf("result %d differs from the shared intent", i)
		}
	}
	if upstream.calls.Load() > 10 || upstream.calls.Load() < 1 {
		t.Fatalf("unexpected upstream call count %d", upstream.calls.Load())
	}
}

func TestCachedClassifier_DoesNotCacheErrors(t *testing.T) {
	upstream := &countingClassifier{fail: true}
	classifier := NewCachedClassifier(upstream, 8)
	ctx := context.Background()

	if _, err := classifier.Classify(ctx, "taken"); err == nil {
		t.Fatalf("expected upstream error")
	}
	upstream.fail = false
	if _, err := classifier.Classify(ctx, "taken"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if upstream.calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", upstream.calls.Load())
	}
}

func TestParseIntent(t *testing.T) {
	intent, err := parseIntent(`{"action":"create_reminder","medication":" Amoxicillin ","dosage":"500mg","rrule":"FREQ=HOURLY;INTERVAL=8","patient_name":"","confidence":0.9,"ai_message":""}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Action != ActionCreateReminder || intent.Medication != "Amoxicillin" || intent.RRule != "FREQ=HOURLY;INTERVAL=8" {
		t.Fatalf("unexpected intent %+v", intent)
	}

	if _, err := parseIntent("not json"); err == nil {
		t.Fatalf("expected parse error")
	}
}
