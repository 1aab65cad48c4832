package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendspin-audio/sendspin-go/audiosink"
	"github.com/sendspin-audio/sendspin-go/decode"
	"github.com/sendspin-audio/sendspin-go/protocol"
	"github.com/sendspin-audio/sendspin-go/scheduler"
	"github.com/sendspin-audio/sendspin-go/state"
	"github.com/sendspin-audio/sendspin-go/timefilter"
	"github.com/sendspin-audio/sendspin-go/transport"
)

const latencyEventQueueDepth = 64

// Session is the client facade: it dials the transport and wires the Time
// Filter, State Store, Protocol Engine, Decode Front-end, and Scheduler
// into one cooperative event loop, the way bridge.Service wires a call's
// SIP and Telegram endpoints around a MediaBridge.
type Session struct {
	cfg          Config
	sink         audiosink.Sink
	flac         decode.FlacDecoder
	commandHooks protocol.CommandHooks
	latency      LatencyStore
	logger       *slog.Logger

	filter *timefilter.Filter
	store  *state.Store
	front  *decode.FrontEnd
	sched  *scheduler.Scheduler
	engine *protocol.Engine
}

// Option customizes a Session beyond the required Config/Sink.
type Option func(*Session)

// WithFlacDecoder injects the host's native FLAC decoder. Without one,
// stream/start announcing codec "flac" will fail every chunk (spec §4.D).
func WithFlacDecoder(d decode.FlacDecoder) Option {
	return func(s *Session) { s.flac = d }
}

// WithCommandHooks injects the hardware volume/mute delegate used when
// Config.UseHardwareVolume is set.
func WithCommandHooks(h protocol.CommandHooks) Option {
	return func(s *Session) { s.commandHooks = h }
}

// WithLatencyStore overrides the default no-op persistence of the smoothed
// output-latency EMA (spec §6's one persisted value).
func WithLatencyStore(store LatencyStore) Option {
	return func(s *Session) { s.latency = store }
}

// WithLogger overrides the default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

type noopLatencyStore struct{}

func (noopLatencyStore) Load(string) (float64, bool) { return 0, false }
func (noopLatencyStore) Save(string, float64)        {}

// New builds a Session. sink must be non-nil: per spec §7, audio sink
// initialization failure is the one error the session cannot run without,
// so it is the caller's job to construct a working Sink before New.
func New(cfg Config, sink audiosink.Sink, opts ...Option) *Session {
	if sink == nil {
		panic("session: New requires a non-nil audiosink.Sink")
	}
	s := &Session{
		cfg:     cfg.withDefaults(),
		sink:    sink,
		latency: noopLatencyStore{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StateChanged implements state.Observer: it keeps the Decode Front-end's
// generation counter in lockstep with the Store's, the mechanism by which
// both the Front-end and the Scheduler drop stale in-flight work.
func (s *Session) StateChanged(snap state.Snapshot) {
	s.front.SetGeneration(snap.StreamGeneration)
}

// OnStreamStart implements protocol.StreamHooks.
func (s *Session) OnStreamStart(p protocol.StreamStartPlayer, header []byte) {
	format := state.StreamFormat{
		Codec:        p.Codec,
		SampleRate:   p.SampleRate,
		ChannelCount: p.Channels,
		BitDepth:     p.BitDepth,
		CodecHeader:  header,
	}
	isUpdate := !s.store.Snapshot().CurrentFormat.IsZero()

	s.store.SetFormat(format)
	s.front.SetFormat(format)
	if !isUpdate {
		s.store.ResetStreamAnchors()
	}
	s.store.SetIsPlaying(true)
}

// OnStreamClear implements protocol.StreamHooks: a seek. Flushes scheduler
// buffers and bumps the generation counter, but leaves format and
// is_playing untouched (spec §4.C's stream/clear row).
func (s *Session) OnStreamClear() {
	s.sched.Clear()
}

// OnStreamEnd implements protocol.StreamHooks: flushes buffers, clears the
// current format, and marks playback stopped.
func (s *Session) OnStreamEnd() {
	s.sched.Clear()
	s.store.ClearFormat()
	s.store.SetIsPlaying(false)
}

func (s *Session) latencyKey() string {
	return "output_latency_us:" + s.cfg.PlayerID
}

// Run dials the transport, builds the remaining components, and blocks
// running the session's single event loop until ctx is canceled or the
// connection is lost. It always attempts a clean shutdown of the Scheduler
// and transport before returning.
func (s *Session) Run(ctx context.Context) error {
	conn, err := transport.Dial(ctx, s.cfg.BaseURL, transport.DialOptions{})
	if err != nil {
		return fmt.Errorf("session: dial: %w", err)
	}
	defer conn.Close()

	s.filter = timefilter.New(timefilter.Config{
		FilterConfidenceUs: s.cfg.FilterConfidenceUs,
		OutlierCapUs:       s.cfg.OutlierCapUs,
	})
	s.store = state.New()
	s.store.Subscribe(s)

	events := make(chan decode.DecodedFrame, latencyEventQueueDepth)
	s.front = decode.NewFrontEnd(events, s.flac, s.logger)
	defer s.front.Close()

	s.sched = scheduler.New(s.sink, s.filter, s.store, scheduler.Config{
		Mode:                         s.cfg.CorrectionMode,
		SyncDelayUs:                  s.cfg.SyncDelayMs * 1000,
		UseOutputLatencyCompensation: s.cfg.UseOutputLatencyCompensation,
		ResamplerQuality:             s.cfg.ResamplerQuality,
	}, s.logger)
	defer s.sched.Close()

	if seed, ok := s.latency.Load(s.latencyKey()); ok {
		s.sched.SeedOutputLatencyUs(seed)
	}
	defer func() { s.latency.Save(s.latencyKey(), s.sched.SmoothedOutputLatencyUs()) }()

	go func() {
		for {
			select {
			case frame := <-events:
				s.sched.Enqueue(frame)
			case <-ctx.Done():
				return
			}
		}
	}()

	s.engine = protocol.New(conn, s.filter, s.store, s, s.commandHooks, protocol.Config{
		ClientID:                     s.cfg.PlayerID,
		ClientName:                   s.cfg.ClientName,
		SupportedFormats:             s.cfg.Codecs,
		BufferCapacity:               s.cfg.BufferCapacity,
		SyncInterval:                 s.cfg.syncInterval(),
		StateInterval:                s.cfg.stateInterval(),
		UseHardwareVolume:            s.cfg.UseHardwareVolume,
		UseOutputLatencyCompensation: s.cfg.UseOutputLatencyCompensation,
	}, s.logger)

	s.engine.OnBinaryFrame(s.handleBinaryFrame)
	s.engine.SetLatencyReader(s.sink)

	return s.engine.Run(ctx)
}

// handleBinaryFrame parses and dispatches one player audio chunk. Per
// spec §7, a malformed frame or a decoder failure is dropped and logged,
// never fatal to the session.
func (s *Session) handleBinaryFrame(data []byte) {
	chunk, err := transport.ParseAudioChunk(data)
	if err != nil {
		s.logger.Warn("dropping malformed audio frame", "err", err)
		return
	}
	generation := s.store.StreamGeneration()
	if err := s.front.HandleChunk(chunk, generation); err != nil {
		s.logger.Warn("dropping undecodable audio chunk", "err", err)
	}
}

// SendControllerCommand forwards a client-originated controller command
// (spec §4.C), gated on the cached supported_commands list.
func (s *Session) SendControllerCommand(ctx context.Context, command string, volume *int, mute *bool) error {
	return s.engine.SendControllerCommand(ctx, command, volume, mute)
}

// Snapshot returns the current state store snapshot, for diagnostics
// (cmd/sendspin-monitor) and embedders.
func (s *Session) Snapshot() state.Snapshot {
	return s.store.Snapshot()
}

// FilterSnapshot returns the current time filter snapshot, for diagnostics.
func (s *Session) FilterSnapshot() timefilter.Snapshot {
	return s.filter.Snapshot()
}

// ResyncCount reports how many scheduler resyncs have fired this session.
func (s *Session) ResyncCount() int {
	return s.sched.ResyncCount()
}
