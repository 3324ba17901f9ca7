package feed

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"atlas-civico/issues"
	"atlas-civico/models"
)

// Raw is one persisted issue record with its identifier.
type Raw struct {
	ID  string
	Doc bson.M
}

// Source is the remote issue collection. List returns every record ordered by
// report time descending; Changes delivers one signal per upstream change
// until the stream ends or ctx is cancelled.
type Source interface {
	List(ctx context.Context) ([]Raw, error)
	Changes(ctx context.Context) (<-chan struct{}, error)
}

// Snapshot receives the full normalized issue list, newest first, on the
// initial subscription and after every upstream change.
type Snapshot func([]models.Issue)

const (
	resubscribeInitial = time.Second
	resubscribeMax     = time.Minute
	resubscribeTries   = 10
)

// Feed maintains exactly one standing subscription to the issue collection.
// Every notification re-lists and re-normalizes the entire visible set; no
// deltas are applied.
type Feed struct {
	source Source
	log    *logrus.Logger

	mu      sync.Mutex
	stopped bool
	err     error
}

func New(source Source, log *logrus.Logger) *Feed {
	return &Feed{source: source, log: log}
}

// Run delivers the initial snapshot synchronously, then follows upstream
// changes until cancelled. The returned cancel func is idempotent, and once
// it returns, fn is never invoked again. Callers must invoke it exactly once
// during teardown.
func (f *Feed) Run(ctx context.Context, fn Snapshot) (func(), error) {
	runCtx, stop := context.WithCancel(ctx)

	if err := f.publish(runCtx, fn); err != nil {
		stop()
		return nil, err
	}

	go f.follow(runCtx, fn)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			f.stopped = true
			f.mu.Unlock()
			stop()
		})
	}
	return cancel, nil
}

// Err reports the terminal subscription error, if the feed gave up.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// publish re-lists the full collection, normalizes every record and hands the
// result to fn. fn runs under the feed lock, so notification N+1 is never
// delivered before the handler for N returns, and nothing is delivered after
// cancellation.
func (f *Feed) publish(ctx context.Context, fn Snapshot) error {
	raws, err := f.source.List(ctx)
	if err != nil {
		return err
	}

	normalized := make([]models.Issue, 0, len(raws))
	for _, raw := range raws {
		normalized = append(normalized, issues.Normalize(raw.ID, raw.Doc))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return nil
	}
	fn(normalized)
	return nil
}

func (f *Feed) follow(ctx context.Context, fn Snapshot) {
	first := true
	for {
		ch, err := f.subscribe(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.log.Errorf("issue subscription abandoned: %v", err)
			}
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			return
		}

		// On a resubscribe, changes may have landed while the stream was
		// down. The first subscription needs no catch-up: Run already
		// published the initial snapshot synchronously.
		if first {
			first = false
		} else if err := f.publish(ctx, fn); err != nil && ctx.Err() == nil {
			f.log.Errorf("failed to list issues: %v", err)
		}

		for range ch {
			if err := f.publish(ctx, fn); err != nil && ctx.Err() == nil {
				f.log.Errorf("failed to list issues: %v", err)
			}
		}

		if ctx.Err() != nil {
			return
		}
		f.log.Warn("issue subscription dropped; resubscribing")
	}
}

func (f *Feed) subscribe(ctx context.Context) (<-chan struct{}, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = resubscribeInitial
	bo.MaxInterval = resubscribeMax

	var ch <-chan struct{}
	op := func() error {
		var err error
		ch, err = f.source.Changes(ctx)
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, resubscribeTries), ctx))
	if err != nil {
		return nil, err
	}
	return ch, nil
}
