// Package state implements the session State Store (component B): a plain
// aggregate with explicit setters that notifies a single observer, plus
// the RFC-7396-flavored one-level-deep diff merge used for the opaque
// cached server/group state blobs.
package state

import "sync"

// PlayerState mirrors the enum sent in client/state's player.state field.
type PlayerState string

const (
	PlayerStateSynchronized PlayerState = "synchronized"
	PlayerStateError        PlayerState = "error"
)

// StreamFormat describes the currently active stream, or is the zero value
// when no stream is active.
type StreamFormat struct {
	Codec        string
	SampleRate   int
	ChannelCount int
	BitDepth     int // 0 means absent
	CodecHeader  []byte
}

// IsZero reports whether no format is currently set.
func (f StreamFormat) IsZero() bool {
	return f.Codec == "" && f.SampleRate == 0 && f.ChannelCount == 0
}

// Snapshot is an immutable point-in-time read of the store, handed to the
// Observer and to callers assembling outbound messages.
type Snapshot struct {
	Volume           int
	Muted            bool
	PlayerState      PlayerState
	IsPlaying        bool
	CurrentFormat    StreamFormat
	StreamGeneration uint32
	ServerState      CachedState
	GroupState       CachedState
}

// Observer is notified after any setter changes state. A single method,
// per spec §9's guidance to prefer an explicit observer interface over a
// shared-mutable closure.
type Observer interface {
	StateChanged(Snapshot)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) StateChanged(s Snapshot) { f(s) }

// Store holds session state (connected volume/mute, current format, stream
// generation counter, cached server/group state). Safe for concurrent use;
// the event loop is the only mutator in practice, but a diagnostic monitor
// may read Snapshot concurrently.
type Store struct {
	mu sync.Mutex

	volume           int
	muted            bool
	playerState      PlayerState
	isPlaying        bool
	currentFormat    StreamFormat
	streamGeneration uint32
	serverState      CachedState
	groupState       CachedState

	observer Observer
}

// New constructs a Store with volume at 100, unmuted, player state
// synchronized.
func New() *Store {
	return &Store{
		volume:      100,
		playerState: PlayerStateSynchronized,
		serverState: CachedState{},
		groupState:  CachedState{},
	}
}

// Subscribe installs the single observer, replacing any previous one.
// Passing nil disables notification.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// notify takes a snapshot under mu and releases the lock before invoking
// the observer, so the observer can safely call back into Store.
func (s *Store) notify() {
	s.mu.Lock()
	obs := s.observer
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if obs != nil {
		obs.StateChanged(snap)
	}
}

// snapshotLocked must be called with mu held.
func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Volume:           s.volume,
		Muted:            s.muted,
		PlayerState:      s.playerState,
		IsPlaying:        s.isPlaying,
		CurrentFormat:    s.currentFormat,
		StreamGeneration: s.streamGeneration,
		ServerState:      s.serverState.Clone(),
		GroupState:       s.groupState.Clone(),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetVolume clamps to [0,100] (P7) and notifies the observer.
func (s *Store) SetVolume(v int) {
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	s.notify()
}

// SetMuted sets the mute flag and notifies the observer.
func (s *Store) SetMuted(m bool) {
	s.mu.Lock()
	s.muted = m
	s.mu.Unlock()
	s.notify()
}

// SetPlayerState records the player's sync-quality state.
func (s *Store) SetPlayerState(ps PlayerState) {
	s.mu.Lock()
	s.playerState = ps
	s.mu.Unlock()
	s.notify()
}

// SetIsPlaying records whether a stream is actively playing.
func (s *Store) SetIsPlaying(playing bool) {
	s.mu.Lock()
	s.isPlaying = playing
	s.mu.Unlock()
	s.notify()
}

// SetFormat installs a new stream format (stream/start). Whether this is a
// first start (generation bump) or a format update is a decision made by
// the caller (session.Session's stream/start hook) before/after calling
// this; Store itself just holds the value.
func (s *Store) SetFormat(f StreamFormat) {
	s.mu.Lock()
	s.currentFormat = f
	s.mu.Unlock()
	s.notify()
}

// ClearFormat clears the current format (stream/end).
func (s *Store) ClearFormat() {
	s.mu.Lock()
	s.currentFormat = StreamFormat{}
	s.mu.Unlock()
	s.notify()
}

// StreamGeneration returns the current generation counter.
func (s *Store) StreamGeneration() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamGeneration
}

// ResetStreamAnchors bumps the generation counter. This is the mechanism by
// which the Scheduler and Decode Front-end drop stale in-flight work after
// a seek (stream/clear) or stream/end.
func (s *Store) ResetStreamAnchors() uint32 {
	s.mu.Lock()
	s.streamGeneration++
	gen := s.streamGeneration
	s.mu.Unlock()
	s.notify()
	return gen
}

// MergeServerState applies a one-level-deep diff merge (see CachedState)
// into the cached server_state blob.
func (s *Store) MergeServerState(diff CachedState) {
	s.mu.Lock()
	s.serverState = s.serverState.Merge(diff)
	s.mu.Unlock()
	s.notify()
}

// MergeGroupState applies a one-level-deep diff merge into the cached
// group_state blob.
func (s *Store) MergeGroupState(diff CachedState) {
	s.mu.Lock()
	s.groupState = s.groupState.Merge(diff)
	s.mu.Unlock()
	s.notify()
}
