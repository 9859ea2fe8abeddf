package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxlate/voxlate/internal/segment"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSet(n int) segment.Set {
	set := make(segment.Set, 0, n)
	for i := 0; i < n; i++ {
		set = append(set, segment.Segment{
			Index:      i,
			StartMS:    int64(i) * 2000,
			EndMS:      int64(i)*2000 + 1500,
			SourceText: fmt.Sprintf("line %d", i),
		})
	}
	return set
}

type fnTranslator func(ctx context.Context, req Request) (string, error)

func (f fnTranslator) Translate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func TestTranslateSetOrderEquivalence(t *testing.T) {
	set := testSet(13)
	stub := fnTranslator(func(_ context.Context, req Request) (string, error) {
		return "de:" + req.Text, nil
	})

	serial, _, err := TranslateSet(context.Background(), stub, set, "en", "de", PoolOptions{Workers: 1}, newLogger())
	if err != nil {
		t.Fatalf("serial translation failed: %v", err)
	}

	for workers := 1; workers <= 6; workers++ {
		got, stats, err := TranslateSet(context.Background(), stub, set, "en", "de", PoolOptions{Workers: workers}, newLogger())
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if stats.Translated != len(set) {
			t.Fatalf("workers=%d: expected %d translated, got %d", workers, len(set), stats.Translated)
		}
		for i := range got {
			if got[i].Index != i {
				t.Fatalf("workers=%d: index order broken at %d", workers, i)
			}
			if got[i].TranslatedText != serial[i].TranslatedText {
				t.Fatalf("workers=%d: segment %d differs from serial run: %q vs %q",
					workers, i, got[i].TranslatedText, serial[i].TranslatedText)
			}
		}
	}
}

func TestTranslateSetSameLanguageShortCircuit(t *testing.T) {
	var calls atomic.Int64
	stub := fnTranslator(func(_ context.Context, req Request) (string, error) {
		calls.Add(1)
		return "", errors.New("should not be called")
	})
	set := testSet(3)
	got, _, err := TranslateSet(context.Background(), stub, set, "de", "de", PoolOptions{}, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no backend calls, got %d", calls.Load())
	}
	for i := range got {
		if got[i].TranslatedText != got[i].SourceText {
			t.Fatalf("expected pass-through text at %d", i)
		}
	}
}

func TestTranslateSetSameLanguageCanceledContext(t *testing.T) {
	stub := fnTranslator(func(_ context.Context, _ Request) (string, error) {
		return "", errors.New("should not be called")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, _, err := TranslateSet(ctx, stub, testSet(3), "de", "de", PoolOptions{}, newLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no result set from a canceled call, got %d segments", len(got))
	}
}

func TestTranslateSetFallsBackAfterRetries(t *testing.T) {
	var calls atomic.Int64
	stub := fnTranslator(func(_ context.Context, req Request) (string, error) {
		if strings.Contains(req.Text, "line 2") {
			calls.Add(1)
			return "", errors.New("rate limited")
		}
		return "ok:" + req.Text, nil
	})

	set := testSet(5)
	got, stats, err := TranslateSet(context.Background(), stub, set, "en", "de",
		PoolOptions{Workers: 2, MaxRetries: 2, BaseDelay: time.Millisecond}, newLogger())
	if err != nil {
		t.Fatalf("expected fail-soft success, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 1 + 2 retries = 3 calls, got %d", calls.Load())
	}
	if stats.FellBack != 1 || stats.Retried != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got[2].TranslatedText != got[2].SourceText {
		t.Fatalf("expected source-text fallback for segment 2, got %q", got[2].TranslatedText)
	}
	if got[1].TranslatedText != "ok:line 1" {
		t.Fatalf("expected other segments translated, got %q", got[1].TranslatedText)
	}
}

func TestTranslateSetPermanentErrorAborts(t *testing.T) {
	var calls atomic.Int64
	stub := fnTranslator(func(ctx context.Context, req Request) (string, error) {
		calls.Add(1)
		return "", Permanent(errors.New("invalid credentials"))
	})

	set := testSet(20)
	_, _, err := TranslateSet(context.Background(), stub, set, "en", "de",
		PoolOptions{Workers: 4, MaxRetries: 3, BaseDelay: time.Millisecond}, newLogger())
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error chain, got %v", err)
	}
	// Cancellation must stop the pool from visiting every segment; a few
	// in-flight calls are fine, a full sweep is not.
	if calls.Load() >= 20 {
		t.Fatalf("expected cooperative cancellation, saw %d calls", calls.Load())
	}
}

func TestTranslateSetHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := fnTranslator(func(ctx context.Context, req Request) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, _, err := TranslateSet(ctx, stub, testSet(8), "en", "de",
		PoolOptions{Workers: 2, BaseDelay: time.Millisecond}, newLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
