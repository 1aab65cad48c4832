// Package protocol implements the Protocol Engine (spec §4.C): the JSON
// control-message state machine layered on top of the transport frame
// boundary. Binary frames are passed through unparsed to a caller-installed
// handler (see Engine.OnBinaryFrame); their envelope is parsed by
// transport.ParseAudioChunk.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outer shape of every text frame: a type tag and an
// opaque, type-dependent payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type tags, spec §6.
const (
	TypeClientHello   = "client/hello"
	TypeServerHello   = "server/hello"
	TypeClientTime    = "client/time"
	TypeServerTime    = "server/time"
	TypeClientState   = "client/state"
	TypeServerState   = "server/state"
	TypeServerCommand = "server/command"
	TypeClientCommand = "client/command"
	TypeStreamStart   = "stream/start"
	TypeStreamClear   = "stream/clear"
	TypeStreamEnd     = "stream/end"
	TypeGroupUpdate   = "group/update"
	TypeClientGoodbye = "client/goodbye"
)

// SupportedRolePlayer is the only role this client advertises.
const SupportedRolePlayer = "player@v1"

// PlayerSupport describes player-role capabilities advertised in hello.
type PlayerSupport struct {
	SupportedFormats  []string `json:"supported_formats,omitempty"`
	BufferCapacity    int      `json:"buffer_capacity,omitempty"`
	SupportedCommands []string `json:"supported_commands,omitempty"`
}

// ClientHello is sent once, immediately after the transport connects.
type ClientHello struct {
	ClientID       string         `json:"client_id"`
	Name           string         `json:"name,omitempty"`
	Version        int            `json:"version"`
	SupportedRoles []string       `json:"supported_roles"`
	DeviceInfo     map[string]any `json:"device_info,omitempty"`
	PlayerSupport  *PlayerSupport `json:"player_support,omitempty"`
}

// ServerHello answers ClientHello and admits the player to Ready. Its
// payload is empty; server_state/group_state arrive via server/state and
// group/update once Ready.
type ServerHello struct{}

// ClientTime is a sync probe; ServerTime is its answer (spec §4.A's T1..T4).
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
}

type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
	ServerReceived    int64 `json:"server_received"`
	ServerTransmitted int64 `json:"server_transmitted"`
}

// ClientStatePlayer is the nested player status reported on the T_state
// cadence.
type ClientStatePlayer struct {
	State  string `json:"state"` // "synchronized" | "error"
	Volume int    `json:"volume"`
	Muted  bool   `json:"muted"`
}

type ClientState struct {
	Player ClientStatePlayer `json:"player"`
}

// ServerStatePatch and GroupUpdatePatch are themselves the RFC-7396-style
// diff (spec §4.B) merged directly into the cached server_state/
// group_state object — the envelope payload IS the diff, not a wrapper
// around one.
type ServerStatePatch map[string]any

type GroupUpdatePatch map[string]any

// ServerCommandPlayer is the server instructing the player to change local
// volume/mute (distinct from the client-originated controller command
// taxonomy below).
type ServerCommandPlayer struct {
	Command string `json:"command"` // "volume" | "mute"
	Volume  *int   `json:"volume,omitempty"`
	Mute    *bool  `json:"mute,omitempty"`
}

type ServerCommand struct {
	Player ServerCommandPlayer `json:"player"`
}

// ClientCommandController is a controller command the client originates
// toward the server (e.g. a local play/pause button), gated by the cached
// server_state.controller.supported_commands list.
type ClientCommandController struct {
	Command string `json:"command"`
	Volume  *int   `json:"volume,omitempty"`
	Mute    *bool  `json:"mute,omitempty"`
}

type ClientCommand struct {
	Controller ClientCommandController `json:"controller"`
}

// Controller command taxonomy, spec §4.C.
const (
	CommandPlay       = "play"
	CommandPause      = "pause"
	CommandStop       = "stop"
	CommandNext       = "next"
	CommandPrevious   = "previous"
	CommandVolume     = "volume"
	CommandMute       = "mute"
	CommandRepeatOff  = "repeat_off"
	CommandRepeatOne  = "repeat_one"
	CommandRepeatAll  = "repeat_all"
	CommandShuffle    = "shuffle"
	CommandUnshuffle  = "unshuffle"
	CommandSwitch     = "switch"
)

// StreamStartPlayer announces a new or updated stream format.
type StreamStartPlayer struct {
	Codec        string `json:"codec"`
	SampleRate   int    `json:"sample_rate"`
	Channels     int    `json:"channels"`
	BitDepth     int    `json:"bit_depth,omitempty"`
	CodecHeader  string `json:"codec_header,omitempty"` // base64
}

type StreamStart struct {
	Player StreamStartPlayer `json:"player"`
}

type StreamClear struct {
	Roles []string `json:"roles,omitempty"`
}

type StreamEnd struct {
	Roles []string `json:"roles,omitempty"`
}

// ClientGoodbye is sent just before the client closes the connection.
type ClientGoodbye struct {
	Reason string `json:"reason"`
}

// Goodbye reasons, spec §6.
const (
	GoodbyeReasonAnotherServer = "another_server"
	GoodbyeReasonShutdown      = "shutdown"
	GoodbyeReasonRestart       = "restart"
	GoodbyeReasonUserRequest   = "user_request"
)

// RolesIncludePlayer reports whether a roles filter (nil/empty meaning
// "all roles") applies to the player role (spec §4.C stream/clear).
func RolesIncludePlayer(roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == "player" {
			return true
		}
	}
	return false
}

// Encode wraps a payload value in an Envelope and marshals it.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Decode unwraps the Envelope and unmarshals its payload into dst.
func Decode(data []byte, dst any) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if dst != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			return env.Type, fmt.Errorf("protocol: decode %s payload: %w", env.Type, err)
		}
	}
	return env.Type, nil
}
