package gateway

import (
	"errors"

	"github.com/tomwolfe/ConvoCue/internal/session"
)

// Command types accepted in client text frames.
const (
	CmdStart         = "start"
	CmdReset         = "reset"
	CmdText          = "text"
	CmdPersona       = "persona"
	CmdSensitivity   = "sensitivity"
	CmdPause         = "pause"
	CmdToggleSpeaker = "toggle_speaker"
	CmdDismiss       = "dismiss"
	CmdSummarize     = "summarize"
	CmdRecharge      = "recharge"
	CmdHello         = "hello"
)

// Message types sent in server text frames.
const (
	MsgState = "state"
	MsgError = "error"
)

// Audio codecs a client may announce in a hello command. Binary frames are
// little-endian float32 PCM until a client switches to Opus.
const (
	CodecPCM  = "pcm"
	CodecOpus = "opus"
)

var (
	// ErrUnknownCommand is reported for a text frame with an unrecognised type.
	ErrUnknownCommand = errors.New("gateway: unknown command")

	// ErrUnsupportedCodec is reported for a hello naming an unknown codec.
	ErrUnsupportedCodec = errors.New("gateway: unsupported codec")
)

// Command is one client text frame. Only the fields relevant to Type are
// read.
type Command struct {
	Type string `json:"type"`

	// Text is the utterance for "text".
	Text string `json:"text,omitempty"`

	// ID is the persona id for "persona".
	ID string `json:"id,omitempty"`

	// Level is the sensitivity for "sensitivity".
	Level string `json:"level,omitempty"`

	// Amount is the recharge for "recharge". Zero or less recharges fully.
	Amount float64 `json:"amount,omitempty"`

	// Codec is the binary frame codec for "hello".
	Codec string `json:"codec,omitempty"`
}

// Message is one server text frame.
type Message struct {
	Type  string            `json:"type"`
	State *session.Snapshot `json:"state,omitempty"`
	Error string            `json:"error,omitempty"`
}
