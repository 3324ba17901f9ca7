package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"atlas-civico/feed"
	"atlas-civico/models"
)

// fakeSource drives the feed from the test. Each call to emit() simulates one
// upstream change notification.
type fakeSource struct {
	mu    sync.Mutex
	raws  []feed.Raw
	ch    chan struct{}
	lists int
}

func newFakeSource(raws []feed.Raw) *fakeSource {
	return &fakeSource{raws: raws, ch: make(chan struct{}, 8)}
}

func (s *fakeSource) List(ctx context.Context) ([]feed.Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	out := make([]feed.Raw, len(s.raws))
	copy(out, s.raws)
	return out, nil
}

func (s *fakeSource) Changes(ctx context.Context) (<-chan struct{}, error) {
	return s.ch, nil
}

func (s *fakeSource) set(raws []feed.Raw) {
	s.mu.Lock()
	s.raws = raws
	s.mu.Unlock()
}

func (s *fakeSource) emit() {
	s.ch <- struct{}{}
}

// collector gathers snapshots and signals arrival.
type collector struct {
	mu        sync.Mutex
	snapshots [][]models.Issue
	arrived   chan struct{}
}

func newCollector() *collector {
	return &collector{arrived: make(chan struct{}, 16)}
}

func (c *collector) fn(issues []models.Issue) {
	c.mu.Lock()
	c.snapshots = append(c.snapshots, issues)
	c.mu.Unlock()
	c.arrived <- struct{}{}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots)
}

func (c *collector) last() []models.Issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots[len(c.snapshots)-1]
}

func (c *collector) at(i int) []models.Issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots[i]
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestFeedDeliversInitialSnapshot(t *testing.T) {
	source := newFakeSource([]feed.Raw{
		{ID: "a", Doc: bson.M{"title": "Broken light"}},
	})
	col := newCollector()

	f := feed.New(source, quietLog())
	cancel, err := f.Run(context.Background(), col.fn)
	require.NoError(t, err)
	defer cancel()

	// The initial snapshot is delivered before Run returns.
	require.GreaterOrEqual(t, col.count(), 1)
	first := col.at(0)
	require.Len(t, first, 1)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, "Broken light", first[0].Title)
}

func TestInitialSnapshotDeliveredExactlyOnce(t *testing.T) {
	source := newFakeSource([]feed.Raw{
		{ID: "a", Doc: bson.M{"title": "Broken light"}},
	})
	col := newCollector()

	f := feed.New(source, quietLog())
	cancel, err := f.Run(context.Background(), col.fn)
	require.NoError(t, err)
	defer cancel()

	// Give the follow goroutine time to subscribe; with no upstream
	// changes it must not publish a second copy of the initial snapshot.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, col.count())
}

func TestFeedRepublishesFullSetOnEveryChange(t *testing.T) {
	source := newFakeSource([]feed.Raw{
		{ID: "a", Doc: bson.M{"title": "Broken light"}},
	})
	col := newCollector()

	f := feed.New(source, quietLog())
	cancel, err := f.Run(context.Background(), col.fn)
	require.NoError(t, err)
	defer cancel()

	// Run's initial publish has already landed.
	col.wait(t)

	source.set([]feed.Raw{
		{ID: "a", Doc: bson.M{"title": "Broken light"}},
		{ID: "b", Doc: bson.M{"title": "Pothole"}},
	})
	source.emit()

	deadline := time.After(2 * time.Second)
	for {
		if col.count() > 0 {
			last := col.last()
			if len(last) == 2 {
				assert.Equal(t, "a", last[0].ID)
				assert.Equal(t, "b", last[1].ID)
				return
			}
		}
		select {
		case <-col.arrived:
		case <-deadline:
			t.Fatal("never saw the two-issue snapshot")
		}
	}
}

func TestFeedCancelIsIdempotentAndSilencesCallback(t *testing.T) {
	source := newFakeSource(nil)
	col := newCollector()

	f := feed.New(source, quietLog())
	cancel, err := f.Run(context.Background(), col.fn)
	require.NoError(t, err)

	// Calling the handle twice must not panic.
	cancel()
	assert.NotPanics(t, func() { cancel() })

	before := col.count()
	// A late upstream change must not reach the callback.
	select {
	case source.ch <- struct{}{}:
	default:
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, col.count())
}

func TestFreshReportAppearsInNextSnapshot(t *testing.T) {
	source := newFakeSource(nil)
	col := newCollector()

	f := feed.New(source, quietLog())
	cancel, err := f.Run(context.Background(), col.fn)
	require.NoError(t, err)
	defer cancel()
	col.wait(t)

	// The record a fresh report writes: status, zero upvotes and the
	// placeholder image are assigned by the reporting path; the timestamp
	// is server-assigned.
	source.set([]feed.Raw{
		{ID: "p1", Doc: bson.M{
			"title":       "Pothole",
			"description": "Large pothole",
			"category":    "Roads",
			"status":      "Received",
			"imageUrl":    "https://placehold.co/600x400?text=Roads",
			"upvotes":     int64(0),
			"location":    bson.M{"lat": -16.0, "lng": -47.98},
			"reportedAt":  time.Now(),
		}},
	})
	source.emit()

	deadline := time.After(2 * time.Second)
	for {
		if col.count() > 0 {
			last := col.last()
			if len(last) == 1 {
				issue := last[0]
				assert.Equal(t, models.StatusReceived, issue.Status)
				assert.Equal(t, int64(0), issue.Upvotes)
				assert.Equal(t, "https://placehold.co/600x400?text=Roads", issue.ImageURL)
				assert.Equal(t, -16.0, issue.Latitude)
				assert.Equal(t, -47.98, issue.Longitude)
				return
			}
		}
		select {
		case <-col.arrived:
		case <-deadline:
			t.Fatal("fresh report never appeared in a snapshot")
		}
	}
}

func TestFeedNormalizesRecords(t *testing.T) {
	source := newFakeSource([]feed.Raw{
		{ID: "x", Doc: bson.M{"title": "Waste pile", "status": "nonsense"}},
	})
	col := newCollector()

	f := feed.New(source, quietLog())
	cancel, err := f.Run(context.Background(), col.fn)
	require.NoError(t, err)
	defer cancel()

	first := col.at(0)
	require.Len(t, first, 1)
	assert.Equal(t, models.StatusReceived, first[0].Status)
	assert.NotNil(t, first[0].Comments)
}
