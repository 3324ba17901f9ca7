package votes

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrUnauthenticated rejects upvotes from callers without a session; the
// handler turns it into a redirect to the sign-in entry point.
var ErrUnauthenticated = errors.New("sign-in required to upvote")

// Store persists the upvote count for an issue.
type Store interface {
	IncrementUpvotes(ctx context.Context, issueID string) error
}

// Storage is the durable per-user ledger of already-upvoted issue IDs.
type Storage interface {
	Load(ctx context.Context, userID string) ([]string, error)
	Append(ctx context.Context, userID, issueID string) error
}

// Notifier surfaces a user-visible failure notification.
type Notifier interface {
	UpvoteFailed(userID, issueID string)
}

// Reconciler applies upvotes optimistically: the user's ledger entry is added
// immediately, the store write follows, and a failed write rolls the entry
// back and fires exactly one notification. The visible "already upvoted"
// state never outlives a failed persistence attempt.
type Reconciler struct {
	store   Store
	storage Storage
	notify  Notifier
	log     *logrus.Logger

	mu      sync.Mutex
	upvoted map[string]map[string]bool // userID -> set of issue IDs
}

func NewReconciler(store Store, storage Storage, notify Notifier, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		storage: storage,
		notify:  notify,
		log:     log,
		upvoted: make(map[string]map[string]bool),
	}
}

// Load populates the user's in-memory ledger from durable storage. Called
// once at session start.
func (r *Reconciler) Load(ctx context.Context, userID string) error {
	ids, err := r.storage.Load(ctx, userID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	r.upvoted[userID] = set
	return nil
}

// Upvoted reports whether the user has already upvoted the issue.
func (r *Reconciler) Upvoted(userID, issueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upvoted[userID][issueID]
}

// UpvotedIssues returns the user's ledger as a set.
func (r *Reconciler) UpvotedIssues(userID string) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.upvoted[userID]))
	for id := range r.upvoted[userID] {
		out[id] = true
	}
	return out
}

// ensureLoaded populates the user's in-memory ledger from durable storage on
// first touch. A session outliving the process (the token is valid for days)
// would otherwise see an empty ledger and let repeat upvotes through.
func (r *Reconciler) ensureLoaded(ctx context.Context, userID string) {
	r.mu.Lock()
	_, loaded := r.upvoted[userID]
	r.mu.Unlock()
	if loaded {
		return
	}

	ids, err := r.storage.Load(ctx, userID)
	if err != nil {
		// Not cached; the next call retries the load.
		r.log.Warnf("failed to load upvote ledger for user %s: %v", userID, err)
		return
	}

	r.mu.Lock()
	if _, ok := r.upvoted[userID]; !ok {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		r.upvoted[userID] = set
	}
	r.mu.Unlock()
}

// Upvote increments the issue's upvote count on behalf of the user and
// returns the count the caller should display. An unauthenticated caller is
// rejected; a repeat upvote is a silent no-op with no store call.
func (r *Reconciler) Upvote(ctx context.Context, userID, issueID string, currentCount int64) (int64, error) {
	if userID == "" {
		return currentCount, ErrUnauthenticated
	}
	r.ensureLoaded(ctx, userID)

	r.mu.Lock()
	if r.upvoted[userID][issueID] {
		r.mu.Unlock()
		return currentCount, nil
	}
	if r.upvoted[userID] == nil {
		r.upvoted[userID] = make(map[string]bool)
	}
	r.upvoted[userID][issueID] = true
	r.mu.Unlock()

	if err := r.store.IncrementUpvotes(ctx, issueID); err != nil {
		r.mu.Lock()
		delete(r.upvoted[userID], issueID)
		r.mu.Unlock()
		r.notify.UpvoteFailed(userID, issueID)
		r.log.WithFields(logrus.Fields{
			"user":  userID,
			"issue": issueID,
		}).Errorf("upvote persistence failed: %v", err)
		return currentCount, err
	}

	if err := r.storage.Append(ctx, userID, issueID); err != nil {
		// The count is already persisted; a stale ledger only risks a
		// rejected duplicate later.
		r.log.Warnf("failed to persist upvote ledger for user %s: %v", userID, err)
	}

	return currentCount + 1, nil
}
