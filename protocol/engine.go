package protocol

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sendspin-audio/sendspin-go/state"
	"github.com/sendspin-audio/sendspin-go/timefilter"
	"github.com/sendspin-audio/sendspin-go/transport"
)

// Phase is the receive-side connection state (spec §4.C).
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseAwaitingServerHello
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseAwaitingServerHello:
		return "awaiting_server_hello"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ErrUnsupportedCommand is returned when server_state.controller.supported_commands
// is present and does not list the command the caller is about to send.
var ErrUnsupportedCommand = errors.New("protocol: command not in supported_commands")

// ErrNotReady is returned by operations that require PhaseReady.
var ErrNotReady = errors.New("protocol: engine is not ready")

// StreamHooks lets the Decode Front-end/Scheduler react to stream lifecycle
// messages without the Engine importing those packages directly.
type StreamHooks interface {
	OnStreamStart(StreamStartPlayer, []byte) // codec header already base64-decoded
	OnStreamClear()
	OnStreamEnd()
}

// CommandHooks lets the session apply a server-issued player volume/mute
// command to the actual output device when hardware volume is in effect
// (spec §6's use_hardware_volume).
type CommandHooks interface {
	SetHardwareVolume(volume int)
	SetHardwareMute(muted bool)
}

// LatencyReader reports the audio sink's current output latency so it can
// be folded into time-sync measurements when enabled (spec §4.C).
type LatencyReader interface {
	OutputLatency() time.Duration
}

// Config bounds the Engine's identity, timers, and hardware-volume mode.
type Config struct {
	ClientID                     string
	ClientName                   string
	SupportedFormats             []string
	BufferCapacity               int
	SupportedCommands            []string
	DeviceInfo                   map[string]any
	SyncInterval                 time.Duration
	StateInterval                time.Duration
	UseHardwareVolume            bool
	UseOutputLatencyCompensation bool
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = uuid.NewString()
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = time.Second
	}
	if c.StateInterval <= 0 {
		c.StateInterval = 5 * time.Second
	}
	return c
}

// Engine drives the client/server control-message state machine: the
// handshake, periodic time sync and state reporting, command dispatch, and
// graceful goodbye.
type Engine struct {
	cfg           Config
	conn          transport.Conn
	filter        *timefilter.Filter
	store         *state.Store
	streamHooks   StreamHooks
	commandHooks  CommandHooks
	latencyReader LatencyReader
	binaryFrame   func([]byte)
	logger        *slog.Logger

	phase Phase
}

// OnBinaryFrame installs the callback invoked for every binary frame the
// connection delivers (player audio chunks). The Engine owns the sole
// Conn.Recv loop, so this is how the session's Decode Front-end gets fed
// without a second reader racing Conn.Recv. Must be called before Run.
func (e *Engine) OnBinaryFrame(handler func([]byte)) {
	e.binaryFrame = handler
}

// SetLatencyReader installs the audio sink latency source folded into time
// sync measurements when Config.UseOutputLatencyCompensation is set. Must be
// called before Run.
func (e *Engine) SetLatencyReader(r LatencyReader) {
	e.latencyReader = r
}

// New builds an Engine. filter, store, and conn must be non-nil; the hook
// interfaces may be nil if the caller has no consumer wired yet (tests).
func New(conn transport.Conn, filter *timefilter.Filter, store *state.Store, streamHooks StreamHooks, commandHooks CommandHooks, cfg Config, logger *slog.Logger) *Engine {
	if filter == nil || store == nil || conn == nil {
		panic("protocol: New requires non-nil conn, filter, and store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:          cfg.withDefaults(),
		conn:         conn,
		filter:       filter,
		store:        store,
		streamHooks:  streamHooks,
		commandHooks: commandHooks,
		logger:       logger.With("component", "protocol"),
		phase:        PhaseDisconnected,
	}
}

// Phase reports the current connection phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// Run drives the handshake and then the receive/timer loop until ctx is
// canceled, the connection fails, or the server breaks the handshake. It always attempts a client/goodbye
// before returning, unless the failure is itself a transport error.
func (e *Engine) Run(ctx context.Context) error {
	e.phase = PhaseConnecting
	if err := e.sendHello(ctx); err != nil {
		e.phase = PhaseDisconnected
		return err
	}
	e.phase = PhaseAwaitingServerHello

	syncTicker := time.NewTicker(e.cfg.SyncInterval)
	defer syncTicker.Stop()
	stateTicker := time.NewTicker(e.cfg.StateInterval)
	defer stateTicker.Stop()

	recvErrs := make(chan error, 1)
	frames := make(chan transport.Frame, 16)
	go e.recvLoop(ctx, frames, recvErrs)

	for {
		select {
		case <-ctx.Done():
			e.sendGoodbye(context.Background(), GoodbyeReasonShutdown)
			return ctx.Err()

		case err := <-recvErrs:
			if err != nil {
				e.logger.Error("transport recv failed", "err", err)
			}
			e.phase = PhaseDisconnected
			return err

		case f := <-frames:
			if f.Kind != transport.FrameText {
				if e.binaryFrame != nil {
					e.binaryFrame(f.Data)
				}
				continue
			}
			if err := e.handleText(ctx, f.Data); err != nil {
				if e.phase == PhaseReady {
					// Per-message failures once Ready (malformed payload,
					// rejected time sample) drop that message only.
					e.logger.Warn("dropping inbound message", "err", err)
					continue
				}
				e.logger.Error("protocol violation", "err", err)
				e.sendGoodbye(context.Background(), GoodbyeReasonShutdown)
				e.phase = PhaseDisconnected
				return err
			}

		case <-syncTicker.C:
			if e.phase == PhaseReady {
				if err := e.sendClientTime(ctx); err != nil {
					e.logger.Warn("client/time send failed", "err", err)
				}
			}

		case <-stateTicker.C:
			if e.phase == PhaseReady {
				if err := e.sendClientState(ctx); err != nil {
					e.logger.Warn("client/state send failed", "err", err)
				}
			}
		}
	}
}

func (e *Engine) recvLoop(ctx context.Context, out chan<- transport.Frame, errs chan<- error) {
	for {
		f, err := e.conn.Recv(ctx)
		if err != nil {
			errs <- err
			return
		}
		select {
		case out <- f:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) sendHello(ctx context.Context) error {
	msg, err := Encode(TypeClientHello, ClientHello{
		ClientID:       e.cfg.ClientID,
		Name:           e.cfg.ClientName,
		Version:        1,
		SupportedRoles: []string{SupportedRolePlayer},
		DeviceInfo:     e.cfg.DeviceInfo,
		PlayerSupport: &PlayerSupport{
			SupportedFormats:  e.cfg.SupportedFormats,
			BufferCapacity:    e.cfg.BufferCapacity,
			SupportedCommands: e.cfg.SupportedCommands,
		},
	})
	if err != nil {
		return err
	}
	return e.conn.SendText(ctx, msg)
}

func (e *Engine) sendGoodbye(ctx context.Context, reason string) {
	msg, err := Encode(TypeClientGoodbye, ClientGoodbye{Reason: reason})
	if err != nil {
		return
	}
	if err := e.conn.SendText(ctx, msg); err != nil {
		e.logger.Warn("client/goodbye send failed", "err", err)
	}
}

func (e *Engine) sendClientTime(ctx context.Context) error {
	msg, err := Encode(TypeClientTime, ClientTime{ClientTransmitted: nowUs()})
	if err != nil {
		return err
	}
	return e.conn.SendText(ctx, msg)
}

func (e *Engine) sendClientState(ctx context.Context) error {
	snap := e.store.Snapshot()
	msg, err := Encode(TypeClientState, ClientState{
		Player: ClientStatePlayer{
			State:  string(snap.PlayerState),
			Volume: snap.Volume,
			Muted:  snap.Muted,
		},
	})
	if err != nil {
		return err
	}
	return e.conn.SendText(ctx, msg)
}

// SendControllerCommand sends a client-originated controller command
// (e.g. from a local play/pause button), gated on the cached
// server_state.controller.supported_commands list when one is present
// (spec §4.C).
func (e *Engine) SendControllerCommand(ctx context.Context, command string, volume *int, mute *bool) error {
	if e.phase != PhaseReady {
		return ErrNotReady
	}
	snap := e.store.Snapshot()
	if supported, has := snap.ServerState.ControllerSupportedCommands(); has {
		found := false
		for _, c := range supported {
			if c == command {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUnsupportedCommand, command)
		}
	}
	msg, err := Encode(TypeClientCommand, ClientCommand{
		Controller: ClientCommandController{Command: command, Volume: volume, Mute: mute},
	})
	if err != nil {
		return err
	}
	return e.conn.SendText(ctx, msg)
}

func (e *Engine) handleText(ctx context.Context, data []byte) error {
	switch e.phase {
	case PhaseAwaitingServerHello:
		return e.handleServerHello(ctx, data)
	case PhaseReady:
		return e.handleReadyMessage(ctx, data)
	default:
		return fmt.Errorf("protocol: unexpected text frame in phase %s", e.phase)
	}
}

func (e *Engine) handleServerHello(ctx context.Context, data []byte) error {
	msgType, err := Decode(data, nil)
	if err != nil {
		return err
	}
	if msgType != TypeServerHello {
		return fmt.Errorf("protocol: expected %s, got %s", TypeServerHello, msgType)
	}
	e.filter.Reset()
	e.phase = PhaseReady
	e.logger.Info("handshake complete", "client_id", e.cfg.ClientID)

	// spec §4.C: send the initial client/state and client/time as soon as
	// the session enters Ready, rather than waiting for the next timer tick.
	if err := e.sendClientState(ctx); err != nil {
		e.logger.Warn("initial client/state send failed", "err", err)
	}
	if err := e.sendClientTime(ctx); err != nil {
		e.logger.Warn("initial client/time send failed", "err", err)
	}
	return nil
}

func (e *Engine) handleReadyMessage(ctx context.Context, data []byte) error {
	msgType, err := Decode(data, nil)
	if err != nil {
		return err
	}
	switch msgType {
	case TypeServerTime:
		var m ServerTime
		if _, err := Decode(data, &m); err != nil {
			return err
		}
		t4 := nowUs()
		delayUs := (t4 - m.ClientTransmitted) - (m.ServerTransmitted - m.ServerReceived)
		measurementUs := symmetricOffsetUs(m.ClientTransmitted, m.ServerReceived, m.ServerTransmitted, t4)
		if e.cfg.UseOutputLatencyCompensation && e.latencyReader != nil {
			measurementUs += float64(e.latencyReader.OutputLatency().Microseconds())
		}
		return e.filter.Update(timefilter.Sample{
			MeasurementUs: measurementUs,
			MaxErrorUs:    float64(delayUs) / 2,
			TLocalNowUs:   t4,
		})

	case TypeServerState:
		var m ServerStatePatch
		if _, err := Decode(data, &m); err != nil {
			return err
		}
		e.store.MergeServerState(state.CachedState(m))
		return nil

	case TypeGroupUpdate:
		var m GroupUpdatePatch
		if _, err := Decode(data, &m); err != nil {
			return err
		}
		e.store.MergeGroupState(state.CachedState(m))
		return nil

	case TypeServerCommand:
		var m ServerCommand
		if _, err := Decode(data, &m); err != nil {
			return err
		}
		e.applyServerCommand(ctx, m.Player)
		return nil

	case TypeStreamStart:
		var m StreamStart
		if _, err := Decode(data, &m); err != nil {
			return err
		}
		var header []byte
		if m.Player.CodecHeader != "" {
			header, err = base64.StdEncoding.DecodeString(m.Player.CodecHeader)
			if err != nil {
				header = nil
			}
		}
		if e.streamHooks != nil {
			e.streamHooks.OnStreamStart(m.Player, header)
		}
		return nil

	case TypeStreamClear:
		var m StreamClear
		if _, err := Decode(data, &m); err != nil {
			return err
		}
		if RolesIncludePlayer(m.Roles) && e.streamHooks != nil {
			e.streamHooks.OnStreamClear()
		}
		return nil

	case TypeStreamEnd:
		var m StreamEnd
		if _, err := Decode(data, &m); err != nil {
			return err
		}
		if RolesIncludePlayer(m.Roles) && e.streamHooks != nil {
			e.streamHooks.OnStreamEnd()
			if err := e.sendClientState(ctx); err != nil {
				e.logger.Warn("confirming client/state send failed", "err", err)
			}
		}
		return nil

	default:
		e.logger.Warn("unrecognized message type", "type", msgType)
		return nil
	}
}

func (e *Engine) applyServerCommand(ctx context.Context, cmd ServerCommandPlayer) {
	switch cmd.Command {
	case CommandVolume:
		if cmd.Volume == nil {
			return
		}
		e.store.SetVolume(*cmd.Volume)
		if e.cfg.UseHardwareVolume && e.commandHooks != nil {
			e.commandHooks.SetHardwareVolume(*cmd.Volume)
		}
	case CommandMute:
		if cmd.Mute == nil {
			return
		}
		e.store.SetMuted(*cmd.Mute)
		if e.cfg.UseHardwareVolume && e.commandHooks != nil {
			e.commandHooks.SetHardwareMute(*cmd.Mute)
		}
	default:
		e.logger.Warn("unrecognized server/command", "command", cmd.Command)
		return
	}
	// spec §4.C: confirm the new volume/mute with a client/state reply
	// promptly, rather than waiting for the next periodic tick.
	if err := e.sendClientState(ctx); err != nil {
		e.logger.Warn("confirming client/state send failed", "err", err)
	}
}

// symmetricOffsetUs computes the classic NTP offset estimate from the four
// timestamps (spec §4.A): ((T2-T1) + (T3-T4)) / 2.
func symmetricOffsetUs(t1, t2, t3, t4 int64) float64 {
	return float64((t2-t1)+(t3-t4)) / 2
}

var nowUsFunc = func() int64 { return time.Now().UnixMicro() }

func nowUs() int64 { return nowUsFunc() }
