// Package websocket implements the server side of the RFC 6455 wire
// protocol directly over raw stream sockets: the HTTP upgrade handshake,
// a frame codec working on byte buffers, and a per-connection receive
// state machine that tolerates arbitrarily chunked reads.
package websocket

import (
	"errors"
)

// Opcode represents WebSocket frame opcodes per RFC 6455.
type Opcode uint8

// Frame opcodes as defined in RFC 6455 Section 5.2.
const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// IsValid checks if the opcode is a valid WebSocket opcode.
func (o Opcode) IsValid() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary,
		OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

// IsControl checks if the opcode is a control frame opcode.
func (o Opcode) IsControl() bool {
	switch o {
	case OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

// String returns the string representation of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "CONTINUATION"
	case OpcodeText:
		return "TEXT"
	case OpcodeBinary:
		return "BINARY"
	case OpcodeClose:
		return "CLOSE"
	case OpcodePing:
		return "PING"
	case OpcodePong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// Frame represents a single WebSocket frame as defined in RFC 6455
// Section 5.2. Frames are transient values produced and consumed entirely
// within one decode or encode call; they are never persisted.
type Frame struct {
	// Fin indicates whether this is the final fragment of a message.
	Fin bool
	// Opcode identifies the type of frame.
	Opcode Opcode
	// Masked indicates whether the payload arrived masked.
	Masked bool
	// MaskKey is the 4-byte masking key, valid only when Masked is set.
	MaskKey [4]byte
	// Payload contains the frame's payload data, already unmasked.
	Payload []byte
}

// Frame errors.
var (
	// ErrInvalidOpcode is returned when an unknown opcode is encountered.
	ErrInvalidOpcode = errors.New("invalid opcode")
	// ErrFrameTooLarge is returned when a frame's declared payload length
	// exceeds MaxFramePayloadSize. Declared lengths are decoded across the
	// full 64-bit extended-length field and rejected explicitly, never
	// silently truncated.
	ErrFrameTooLarge = errors.New("frame payload exceeds maximum allowed size")
	// ErrFragmentedControl is returned when a control frame is fragmented.
	ErrFragmentedControl = errors.New("control frames cannot be fragmented")
	// ErrControlFrameTooLong is returned when a control frame carries more
	// than 125 bytes of payload.
	ErrControlFrameTooLong = errors.New("control frame payload too long")
	// ErrConnectionClosed is returned when writing to a connection that is
	// no longer open.
	ErrConnectionClosed = errors.New("connection closed")
)

// Frame size limits.
const (
	// MaxControlPayloadSize is the maximum payload size for control frames
	// per RFC 6455 Section 5.5.
	MaxControlPayloadSize = 125
	// MaxFramePayloadSize caps the payload a single frame may declare.
	// Signaling payloads are small JSON envelopes; anything near this
	// limit is a misbehaving peer.
	MaxFramePayloadSize = 16 * 1024 * 1024
)

// FrameError wraps a frame validation error together with the offending
// opcode.
type FrameError struct {
	Err    error
	Opcode Opcode
}

func (e *FrameError) Error() string {
	return e.Err.Error()
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Validate validates the frame according to RFC 6455 rules.
func (f *Frame) Validate() error {
	if !f.Opcode.IsValid() {
		return &FrameError{Err: ErrInvalidOpcode, Opcode: f.Opcode}
	}
	if f.Opcode.IsControl() && !f.Fin {
		return &FrameError{Err: ErrFragmentedControl, Opcode: f.Opcode}
	}
	if f.Opcode.IsControl() && len(f.Payload) > MaxControlPayloadSize {
		return &FrameError{Err: ErrControlFrameTooLong, Opcode: f.Opcode}
	}
	return nil
}
