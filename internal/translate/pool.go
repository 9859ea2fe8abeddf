package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/voxlate/voxlate/internal/segment"
)

// PoolOptions configures the translation fan-out.
type PoolOptions struct {
	// Workers is the bounded pool size. Values below 1 mean 4.
	Workers int
	// MaxRetries bounds the retry attempts per segment beyond the first
	// call. Zero disables retries.
	MaxRetries int
	// BaseDelay is the initial backoff interval. Zero means 500ms.
	BaseDelay time.Duration
}

// Stats summarizes a pool run.
type Stats struct {
	Translated int
	FellBack   int
	Retried    int
}

// TranslateSet fans the set out across a bounded worker pool and returns a
// copy with TranslatedText populated on every segment, in index order.
// Transient backend failures are retried with exponential backoff and then
// degrade to the source text; a PermanentError cancels all workers and
// fails the phase. When source and target language match, translation is
// skipped entirely.
func TranslateSet(ctx context.Context, tr Translator, set segment.Set, sourceLang, targetLang string, opts PoolOptions, log *slog.Logger) (segment.Set, Stats, error) {
	var stats Stats
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	out := make(segment.Set, len(set))
	copy(out, set)

	if sourceLang == targetLang {
		for i := range out {
			out[i].TranslatedText = out[i].SourceText
		}
		stats.Translated = len(out)
		return out, stats, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 4
	}
	if workers > len(out) && len(out) > 0 {
		workers = len(out)
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		fatalOnce sync.Once
		fatalErr  error
		fellBack  atomic.Int64
		retried   atomic.Int64
	)
	jobs := make(chan int)

	recordFatal := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			// Stop other workers from issuing new requests; in-flight
			// calls drain through their own contexts.
			cancel()
		})
	}

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			if poolCtx.Err() != nil {
				return
			}
			seg := &out[i]

			operation := func() (string, error) {
				text, err := tr.Translate(poolCtx, Request{
					Text:       seg.SourceText,
					SourceLang: sourceLang,
					TargetLang: targetLang,
				})
				if err != nil {
					if IsPermanent(err) {
						return "", backoff.Permanent(err)
					}
					return "", err
				}
				return text, nil
			}

			expo := backoff.NewExponentialBackOff()
			expo.InitialInterval = baseDelay

			text, err := backoff.Retry(poolCtx, operation,
				backoff.WithBackOff(expo),
				backoff.WithMaxTries(uint(opts.MaxRetries+1)),
				backoff.WithNotify(func(err error, d time.Duration) {
					retried.Add(1)
					log.Warn("translation attempt failed, retrying",
						slog.Int("segment", seg.Index),
						slog.Duration("backoff", d),
						slog.String("error", err.Error()))
				}),
			)
			switch {
			case err == nil:
				seg.TranslatedText = text
			case IsPermanent(err):
				recordFatal(err)
				return
			case poolCtx.Err() != nil:
				return
			default:
				// Fail-soft: keep the source text so assembly still gets
				// complete audio.
				seg.TranslatedText = seg.SourceText
				fellBack.Add(1)
				log.Warn("translation exhausted retries, falling back to source text",
					slog.Int("segment", seg.Index),
					slog.String("error", err.Error()))
			}
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}

feed:
	for i := range out {
		select {
		case jobs <- i:
		case <-poolCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	stats.FellBack = int(fellBack.Load())
	stats.Retried = int(retried.Load())

	if fatalErr != nil {
		return nil, stats, fmt.Errorf("translation phase aborted: %w", fatalErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	stats.Translated = len(out) - stats.FellBack
	return out, stats, nil
}
