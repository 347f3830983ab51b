package websocket

import (
	"encoding/binary"
)

// DecodeFrame parses one WebSocket frame from the front of buf.
//
// It returns the decoded frame and the number of bytes consumed. When buf
// does not yet hold a complete frame (including a truncated extended
// length or mask key), it returns (nil, 0, nil): the caller should wait
// for more bytes and retry. A non-nil error is a protocol violation, not
// a short read. DecodeFrame never mutates buf; masked payloads are
// unmasked into a fresh slice.
//
// The extended-length path honors the full 64-bit field of RFC 6455
// Section 5.2, so declared lengths beyond 32 bits are decoded correctly
// and rejected against MaxFramePayloadSize rather than wrapped.
func DecodeFrame(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}

	frame := &Frame{
		Fin:    buf[0]&0x80 != 0,
		Opcode: Opcode(buf[0] & 0x0F),
		Masked: buf[1]&0x80 != 0,
	}

	payloadLen := uint64(buf[1] & 0x7F)
	offset := 2

	switch payloadLen {
	case 126:
		if len(buf) < offset+2 {
			return nil, 0, nil
		}
		payloadLen = uint64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case 127:
		if len(buf) < offset+8 {
			return nil, 0, nil
		}
		payloadLen = binary.BigEndian.Uint64(buf[offset:])
		offset += 8
	}

	if payloadLen > MaxFramePayloadSize {
		return nil, 0, &FrameError{Err: ErrFrameTooLarge, Opcode: frame.Opcode}
	}

	if frame.Masked {
		if len(buf) < offset+4 {
			return nil, 0, nil
		}
		copy(frame.MaskKey[:], buf[offset:offset+4])
		offset += 4
	}

	if uint64(len(buf)-offset) < payloadLen {
		return nil, 0, nil
	}

	n := int(payloadLen)
	payload := make([]byte, n)
	if frame.Masked {
		for i := 0; i < n; i++ {
			payload[i] = buf[offset+i] ^ frame.MaskKey[i%4]
		}
	} else {
		copy(payload, buf[offset:offset+n])
	}
	frame.Payload = payload

	if err := frame.Validate(); err != nil {
		return nil, 0, err
	}

	return frame, offset + n, nil
}

// EncodeText serializes payload as a single unmasked fin=1 text frame.
// Server-to-client frames are never masked per RFC 6455 Section 5.1.
func EncodeText(payload []byte) []byte {
	return encodeFrame(OpcodeText, payload)
}

// EncodeClose serializes an empty close frame.
func EncodeClose() []byte {
	return encodeFrame(OpcodeClose, nil)
}

// encodeFrame builds an unmasked fin=1 frame. The length field mirrors
// the decoder's three size classes: <126 literal, <65536 via the 16-bit
// extension, everything else via the 64-bit extension.
func encodeFrame(opcode Opcode, payload []byte) []byte {
	n := len(payload)

	var header []byte
	b0 := byte(0x80) | byte(opcode&0x0F)
	switch {
	case n < 126:
		header = []byte{b0, byte(n)}
	case n < 65536:
		header = make([]byte, 4)
		header[0] = b0
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:], uint16(n))
	default:
		header = make([]byte, 10)
		header[0] = b0
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(n))
	}

	out := make([]byte, len(header)+n)
	copy(out, header)
	copy(out[len(header):], payload)
	return out
}
