package corpus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/metrics"
)

// Holder publishes the current snapshot. Readers call Current and work against the returned
// snapshot for the whole request; a reload never mutates a published snapshot.
type Holder struct {
	current  atomic.Pointer[Snapshot]
	loader   Loader
	logger   *zap.Logger
	onSwap   []func(prev, next *Snapshot)
	reloadMu sync.Mutex
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) HolderOption {
	return func(h *Holder) { h.logger = l }
}

// WithOnSwap registers a callback run after every successful publish. prev may be nil.
func WithOnSwap(fn func(prev, next *Snapshot)) HolderOption {
	return func(h *Holder) { h.onSwap = append(h.onSwap, fn) }
}

// NewHolder creates an empty holder. loader may be nil when snapshots are only published via Swap.
func NewHolder(loader Loader, opts ...HolderOption) *Holder {
	h := &Holder{loader: loader, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Current returns the published snapshot or ErrNotLoaded.
func (h *Holder) Current() (*Snapshot, error) {
	s := h.current.Load()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return s, nil
}

// Swap publishes next and returns the previous snapshot (nil if none).
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	prev := h.current.Swap(next)
	for _, fn := range h.onSwap {
		fn(prev, next)
	}
	return prev
}

// Reload loads a new snapshot and publishes it. On error the current snapshot stays in place.
// Concurrent reloads are serialized.
func (h *Holder) Reload(ctx context.Context) (*Snapshot, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	if h.loader == nil {
		return nil, errors.New("corpus: no loader configured")
	}
	start := time.Now()
	snap, err := h.loader.Load(ctx)
	if err != nil {
		metrics.RecordCorpusReload(0, err)
		h.logger.Error("corpus reload failed", zap.Error(err))
		return nil, err
	}
	if dup := snap.Store.DuplicateTitles(); dup > 0 {
		h.logger.Warn("corpus has duplicate titles; the first row of each wins",
			zap.Int("duplicates", dup))
	}
	if prev := h.Swap(snap); prev != nil && prev.Fingerprint != "" && prev.Fingerprint == snap.Fingerprint {
		h.logger.Debug("corpus files unchanged since last load", zap.String("fingerprint", snap.Fingerprint))
	}
	metrics.RecordCorpusReload(snap.Len(), nil)
	h.logger.Info("corpus loaded",
		zap.Int("items", snap.Len()),
		zap.Int("dimensions", snap.Store.Dimensions()),
		zap.String("version", snap.Version),
		zap.Duration("took", time.Since(start)))
	return snap, nil
}
