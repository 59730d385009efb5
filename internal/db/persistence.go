package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vessel-cbm-monitor/internal/store"
)

// KV is scoped key-value storage.
type KV interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
	Keys(ctx context.Context, scope string) ([]string, error)
	Close() error
}

const (
	// Scope groups the dashboard's keys.
	Scope = "cbm"
	// StateKey holds the serialized store.
	StateKey = "cbm_dashboard_data"
)

// Persistence saves and restores the store as one JSON document.
type Persistence struct {
	kv     KV
	logger *zap.Logger
}

// NewPersistence wraps kv. A nil logger discards output.
func NewPersistence(kv KV, logger *zap.Logger) *Persistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{kv: kv, logger: logger}
}

// Save writes the store snapshot under StateKey.
func (p *Persistence) Save(ctx context.Context, s *store.Store) error {
	payload, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := p.kv.Set(ctx, Scope, StateKey, payload); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	p.logger.Info("state saved", zap.Int("readings", s.Len()), zap.Int("bytes", len(payload)))
	return nil
}

// Load restores the store from StateKey and reports whether data was
// found. Missing or unreadable data leaves the store empty; the failure
// is logged, not returned.
func (p *Persistence) Load(ctx context.Context, s *store.Store) bool {
	payload, err := p.kv.Get(ctx, Scope, StateKey)
	if errors.Is(err, ErrNotFound) {
		s.Reset()
		p.logger.Info("no saved state")
		return false
	}
	if err != nil {
		s.Reset()
		p.logger.Warn("state read failed, starting empty", zap.Error(err))
		return false
	}

	var st store.State
	if err := json.Unmarshal(payload, &st); err != nil {
		s.Reset()
		p.logger.Warn("state corrupt, starting empty", zap.Error(err))
		return false
	}
	s.Restore(st)
	p.logger.Info("state loaded", zap.Int("readings", s.Len()), zap.Int("vessels", len(st.Vessels)))
	return true
}

// Clear removes the saved state.
func (p *Persistence) Clear(ctx context.Context) error {
	return p.kv.Delete(ctx, Scope, StateKey)
}
