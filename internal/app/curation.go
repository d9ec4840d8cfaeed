package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultWriteTimeout = 5 * time.Second
)

// Store owns the approved-id set. It does not know review types; eligibility
// is enforced by Curator before ids reach it.
//
// Mutations land in memory immediately and are persisted as full-set
// snapshots after a quiet period. Only the newest snapshot is ever pending,
// and writes are serialized, so the durable store always ends on the last
// intent.
type Store struct {
	durable      domain.ApprovalBackend // may be nil: local only
	local        domain.ApprovalBackend // may be nil: no mirror
	window       time.Duration
	writeTimeout time.Duration

	mu         sync.Mutex
	ids        map[int64]struct{}
	loaded     bool
	pending    []int64
	hasPending bool
	timer      *time.Timer
	gen        uint64 // bumped by every mutation
	savedGen   uint64 // generation last written durably

	writeMu sync.Mutex
	lastErr error // outcome of the latest durable write, guarded by writeMu
}

func NewStore(durable, local domain.ApprovalBackend, window, writeTimeout time.Duration) *Store {
	if window <= 0 {
		window = DefaultDebounce
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Store{
		durable:      durable,
		local:        local,
		window:       window,
		writeTimeout: writeTimeout,
		ids:          map[int64]struct{}{},
	}
}

// Load reads the set from the durable backend, falling back to the local
// mirror and then to empty. Once loaded, memory holding changes that have not
// reached the durable backend (pending, in flight or failed) is newer than
// anything stored, so it is kept and returned instead.
func (s *Store) Load(ctx context.Context) []int64 {
	ids := s.read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded && s.dirtyLocked() {
		return s.snapshotLocked()
	}
	s.loaded = true
	s.ids = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s.snapshotLocked()
}

// Current returns the in-memory set, loading it first if nothing has been
// loaded yet.
func (s *Store) Current(ctx context.Context) []int64 {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		return s.Load(ctx)
	}
	return s.IDs()
}

func (s *Store) dirtyLocked() bool { return s.hasPending || s.gen != s.savedGen }

func (s *Store) read(ctx context.Context) []int64 {
	if s.durable != nil {
		ids, err := s.durable.LoadApproved(ctx)
		if err == nil {
			return ids
		}
		log.Warn().Err(err).Msg("durable approved set unavailable, using local copy")
	}
	if s.local != nil {
		ids, err := s.local.LoadApproved(ctx)
		if err == nil {
			return ids
		}
		log.Warn().Err(err).Msg("local approved set unavailable, starting empty")
	}
	return nil
}

func (s *Store) Approve(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.ErrNotLoaded
	}
	if _, ok := s.ids[id]; ok {
		return nil
	}
	s.ids[id] = struct{}{}
	s.scheduleLocked()
	return nil
}

func (s *Store) Unapprove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.ErrNotLoaded
	}
	if _, ok := s.ids[id]; !ok {
		return nil
	}
	delete(s.ids, id)
	s.scheduleLocked()
	return nil
}

// Replace swaps the whole set. Duplicates in ids are ignored.
func (s *Store) Replace(ids []int64) error {
	next := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.ErrNotLoaded
	}
	if sameSet(s.ids, next) {
		return nil
	}
	s.ids = next
	s.scheduleLocked()
	return nil
}

func sameSet(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (s *Store) IsApproved(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns the current set in ascending order.
func (s *Store) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// scheduleLocked replaces the pending snapshot and restarts the quiet period.
func (s *Store) scheduleLocked() {
	s.gen++
	s.pending = s.snapshotLocked()
	s.hasPending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.window, s.onTimer)
}

func (s *Store) onTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		log.Error().Err(err).Str("err_type", observability.LabelErr(err)).Msg("approved set write failed; next change retries")
	}
}

// Flush writes the pending snapshot now. With nothing pending it rewrites the
// current set only if the previous durable write failed.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	snap, ok := s.pending, s.hasPending
	s.pending, s.hasPending = nil, false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !ok && s.loaded && (s.lastErr != nil || s.gen != s.savedGen) {
		snap, ok = s.snapshotLocked(), true
	}
	gen := s.gen
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.lastErr = s.persist(ctx, snap)
	if s.lastErr == nil {
		s.mu.Lock()
		if gen > s.savedGen {
			s.savedGen = gen
		}
		s.mu.Unlock()
	}
	return s.lastErr
}

// Close cancels the quiet period and writes whatever is pending.
func (s *Store) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

// persist writes durably, then mirrors locally whatever the durable outcome.
func (s *Store) persist(ctx context.Context, ids []int64) error {
	var err error
	if s.durable != nil {
		err = s.durable.SaveApproved(ctx, ids)
		observability.ObserveCurationWrite("durable", err)
	}
	if s.local != nil {
		lerr := s.local.SaveApproved(ctx, ids)
		observability.ObserveCurationWrite("local", lerr)
		if lerr != nil {
			log.Warn().Err(lerr).Msg("local approved mirror write failed")
		}
	}
	if err == nil {
		log.Debug().Int("count", len(ids)).Msg("approved set saved")
	}
	return err
}
