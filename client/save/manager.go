package save

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/types"
)

// DefaultAutosaveInterval is how often a dirty snapshot is flushed to disk
// while the game runs.
const DefaultAutosaveInterval = 30 * time.Second

// GameResult is the outcome of one run, applied to lifetime stats.
type GameResult struct {
	Score        int64
	Floor        int64
	PerfectCount int64
	MaxCombo     int64
	CoinsEarned  int64
	Medals       []string
}

// Manager owns the live snapshot during play. All mutators take the lock,
// mark the snapshot dirty, and let the autosave loop or Close flush it.
type Manager struct {
	mu       sync.Mutex
	snapshot *types.SaveSnapshot
	dirty    bool

	local    *LocalStore
	syncer   *Syncer
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type NewManagerOptions struct {
	Local *LocalStore
	// Syncer reconciles with the cloud at boot. Nil means offline-only.
	Syncer *Syncer
	// AutosaveInterval overrides DefaultAutosaveInterval. Optional.
	AutosaveInterval time.Duration
}

func NewManager(opts NewManagerOptions) *Manager {
	interval := opts.AutosaveInterval
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Manager{
		local:    opts.Local,
		syncer:   opts.Syncer,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Initialize loads the local save, reconciles with the cloud, persists the
// winner, and starts the autosave loop.
func (m *Manager) Initialize(ctx context.Context) error {
	local, err := m.local.Load()
	if err != nil {
		return fmt.Errorf("failed to load local save: %v", err)
	}

	snapshot := local
	if m.syncer != nil {
		snapshot = m.syncer.Reconcile(ctx, local)
	}
	if snapshot == nil {
		snapshot = types.DefaultSaveSnapshot()
	}

	if err := m.local.Save(snapshot); err != nil {
		return fmt.Errorf("failed to persist reconciled save: %v", err)
	}

	m.mu.Lock()
	m.snapshot = snapshot
	m.dirty = false
	m.mu.Unlock()

	m.wg.Add(1)
	go m.autosaveLoop()

	return nil
}

func (m *Manager) autosaveLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.Flush(); err != nil {
				log.Error("Autosave failed: %v", err)
			}
		}
	}
}

// Snapshot returns a copy of the current save.
func (m *Manager) Snapshot() *types.SaveSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone()
}

// Mutate applies fn to the snapshot under the lock and marks it dirty.
func (m *Manager) Mutate(fn func(s *types.SaveSnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.snapshot)
	m.dirty = true
}

// RecordGameResult folds one run into lifetime stats and currency.
func (m *Manager) RecordGameResult(result GameResult) {
	m.Mutate(func(s *types.SaveSnapshot) {
		s.Stats.GamesPlayed++
		s.Stats.TotalScore += result.Score
		if result.Score > s.Stats.HighScore {
			s.Stats.HighScore = result.Score
		}
		if result.Floor > s.Stats.HighFloor {
			s.Stats.HighFloor = result.Floor
		}
		s.Stats.PerfectCount += result.PerfectCount
		if result.MaxCombo > s.Stats.MaxCombo {
			s.Stats.MaxCombo = result.MaxCombo
		}
		for _, medal := range result.Medals {
			if !containsString(s.Stats.Medals, medal) {
				s.Stats.Medals = append(s.Stats.Medals, medal)
			}
		}
		s.Currency.Coins += result.CoinsEarned
	})
}

func (m *Manager) AddCoins(amount int64) {
	m.Mutate(func(s *types.SaveSnapshot) {
		s.Currency.Coins += amount
	})
}

// SpendCoins debits coins, failing rather than going negative.
func (m *Manager) SpendCoins(amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot.Currency.Coins < amount {
		return fmt.Errorf("not enough coins: have %d, need %d", m.snapshot.Currency.Coins, amount)
	}
	m.snapshot.Currency.Coins -= amount
	m.dirty = true
	return nil
}

func (m *Manager) AddDiamonds(amount int64) {
	m.Mutate(func(s *types.SaveSnapshot) {
		s.Currency.Diamonds += amount
	})
}

// SpendDiamonds debits diamonds, failing rather than going negative.
func (m *Manager) SpendDiamonds(amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot.Currency.Diamonds < amount {
		return fmt.Errorf("not enough diamonds: have %d, need %d", m.snapshot.Currency.Diamonds, amount)
	}
	m.snapshot.Currency.Diamonds -= amount
	m.dirty = true
	return nil
}

func (m *Manager) UpdateSettings(fn func(settings *types.Settings)) {
	m.Mutate(func(s *types.SaveSnapshot) {
		fn(&s.Settings)
	})
}

func (m *Manager) UpdateRetention(fn func(retention *types.Retention)) {
	m.Mutate(func(s *types.SaveSnapshot) {
		fn(&s.Retention)
	})
}

func (m *Manager) UpdateEnergy(fn func(energy *types.Energy)) {
	m.Mutate(func(s *types.SaveSnapshot) {
		fn(&s.Energy)
	})
}

// Flush writes the snapshot to disk if it changed since the last flush.
func (m *Manager) Flush() error {
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return nil
	}
	snapshot := m.snapshot.Clone()
	m.dirty = false
	m.mu.Unlock()

	if err := m.local.Save(snapshot); err != nil {
		m.mu.Lock()
		m.dirty = true
		m.mu.Unlock()
		return err
	}
	return nil
}

// Close stops the autosave loop and flushes any pending changes.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
	return m.Flush()
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
