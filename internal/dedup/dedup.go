// Package dedup guards per-visitor actions (reactions, comments) so each one
// runs at most once per visitor and key. The fact that an action ran is
// committed to storage before the external effect is invoked.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Storage is the narrow key/value boundary the deduplicator persists through.
// A missing entry is reported with ok=false and a nil error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Control is one interactive element bound to an action key.
type Control interface {
	Key() string
	SetDisabled(disabled bool)
}

// Surface is the rendered page the deduplicator reflects its state into.
type Surface interface {
	Controls() []Control
	ReplaceFragment(elementID, fragment string) error
}

// Effect performs the guarded action remotely and returns a markup fragment.
type Effect func(ctx context.Context, action, key string) (string, error)

// ErrInvalidKey is returned for keys that cannot be stored in a record set:
// the empty key and keys containing the record separator.
var ErrInvalidKey = errors.New("invalid record key")

// ValidKey reports whether key can be recorded.
func ValidKey(key string) bool {
	return key != "" && !strings.Contains(key, recordSeparator)
}

// Payload travels with a guarded action to the effect and the surface.
type Payload struct {
	Action    string
	ElementID string
}

type Outcome int

const (
	// OutcomeSkipped means the key was already recorded; nothing happened.
	OutcomeSkipped Outcome = iota
	OutcomePerformed
	// OutcomeEffectFailed means the key is recorded but the effect errored.
	OutcomeEffectFailed
	// OutcomePersistFailed means the record could not be written; the
	// effect was not invoked.
	OutcomePersistFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return outcomeSkipped
	case OutcomePerformed:
		return outcomePerformed
	case OutcomeEffectFailed:
		return outcomeEffectFailed
	case OutcomePersistFailed:
		return outcomePersistFailed
	default:
		return "unknown"
	}
}

// Storage keys used by the news pages.
const (
	DefaultIdentityKey = "user_id"
	ReactionsKey       = "articles"
	CommentsKey        = "commented_articles"
)

type Options struct {
	IdentityKey string
	RecordsKey  string
	Now         func() time.Time
	Logger      *zap.Logger
	Metrics     *Metrics
}

// ReactionOptions returns the options for the like/react buttons.
func ReactionOptions(logger *zap.Logger, metrics *Metrics) Options {
	return Options{IdentityKey: DefaultIdentityKey, RecordsKey: ReactionsKey, Logger: logger, Metrics: metrics}
}

// CommentOptions returns the options for the comment forms.
func CommentOptions(logger *zap.Logger, metrics *Metrics) Options {
	return Options{IdentityKey: DefaultIdentityKey, RecordsKey: CommentsKey, Logger: logger, Metrics: metrics}
}

// Deduplicator owns one visitor's identity and record set.
type Deduplicator struct {
	storage Storage
	effect  Effect
	surface Surface
	opts    Options
	logger  *zap.Logger

	mu      sync.Mutex
	userID  string
	records RecordSet
}

// New builds a deduplicator. effect and surface may be nil.
func New(storage Storage, effect Effect, surface Surface, opts Options) *Deduplicator {
	if opts.IdentityKey == "" {
		opts.IdentityKey = DefaultIdentityKey
	}
	if opts.RecordsKey == "" {
		opts.RecordsKey = ReactionsKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{
		storage: storage,
		effect:  effect,
		surface: surface,
		opts:    opts,
		logger:  logger.With(zap.String("records_key", opts.RecordsKey)),
	}
}

// Initialize loads (or creates) the visitor identity, loads the record set
// and disables every control whose key is already recorded. Keys recorded
// earlier in this session are kept even if storage lost them.
func (d *Deduplicator) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	userID, ok, err := d.storage.Get(ctx, d.opts.IdentityKey)
	if err != nil {
		return fmt.Errorf("read identity: %w", err)
	}
	if !ok {
		userID = strconv.FormatInt(d.opts.Now().UnixMilli(), 10)
		if err := d.storage.Set(ctx, d.opts.IdentityKey, userID); err != nil {
			return fmt.Errorf("write identity: %w", err)
		}
		d.logger.Info("new user id", zap.String("user_id", userID))
	}
	d.userID = userID

	raw, _, err := d.storage.Get(ctx, d.opts.RecordsKey)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	loaded := ParseRecordSet(raw)
	for _, k := range d.records.keys {
		loaded.Append(k)
	}
	d.records = loaded

	d.refreshLocked()
	return nil
}

// PerformGuardedAction runs the effect for key unless key is already
// recorded. The record is persisted before the effect runs and is never
// rolled back. Keys rejected by ValidKey yield ErrInvalidKey and nothing
// is recorded.
func (d *Deduplicator) PerformGuardedAction(ctx context.Context, key string, payload Payload) (Outcome, error) {
	recorded, err := d.record(ctx, key)
	if errors.Is(err, ErrInvalidKey) {
		return OutcomeSkipped, err
	}
	if err != nil {
		d.opts.Metrics.observe(outcomePersistFailed)
		return OutcomePersistFailed, err
	}
	if !recorded {
		d.opts.Metrics.observe(outcomeSkipped)
		return OutcomeSkipped, nil
	}

	outcome := OutcomePerformed
	var fragment string
	if d.effect != nil {
		fragment, err = d.effect(ctx, payload.Action, key)
		if err != nil {
			d.logger.Error("guarded action failed",
				zap.String("key", key),
				zap.String("action", payload.Action),
				zap.Error(err))
			outcome = OutcomeEffectFailed
		}
	}

	d.mu.Lock()
	if outcome == OutcomePerformed && fragment != "" && payload.ElementID != "" && d.surface != nil {
		if err := d.surface.ReplaceFragment(payload.ElementID, fragment); err != nil {
			d.logger.Warn("replace fragment", zap.String("element_id", payload.ElementID), zap.Error(err))
		}
	}
	d.refreshLocked()
	d.mu.Unlock()

	d.opts.Metrics.observe(outcome.String())
	return outcome, nil
}

// Claim records key without invoking any effect. It reports whether this
// call was the first to record it.
func (d *Deduplicator) Claim(ctx context.Context, key string) (bool, error) {
	recorded, err := d.record(ctx, key)
	if errors.Is(err, ErrInvalidKey) {
		return false, err
	}
	if err != nil {
		d.opts.Metrics.observe(outcomePersistFailed)
		return false, err
	}
	if !recorded {
		d.opts.Metrics.observe(outcomeSkipped)
		return false, nil
	}
	d.mu.Lock()
	d.refreshLocked()
	d.mu.Unlock()
	d.opts.Metrics.observe(outcomePerformed)
	return true, nil
}

func (d *Deduplicator) record(ctx context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.records.Append(key) {
		return false, nil
	}
	if err := d.storage.Set(ctx, d.opts.RecordsKey, d.records.String()); err != nil {
		d.logger.Error("persist records", zap.String("key", key), zap.Error(err))
		return true, fmt.Errorf("persist records: %w", err)
	}
	return true, nil
}

// Refresh re-runs the disable pass over the surface controls.
func (d *Deduplicator) Refresh() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshLocked()
}

func (d *Deduplicator) refreshLocked() {
	if d.surface == nil {
		return
	}
	for _, c := range d.surface.Controls() {
		c.SetDisabled(d.records.Contains(c.Key()))
	}
}

func (d *Deduplicator) UserID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userID
}

// Records returns a copy of the recorded keys in insertion order.
func (d *Deduplicator) Records() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records.Keys()
}

// Has reports whether key is recorded.
func (d *Deduplicator) Has(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records.Contains(key)
}
