package websocket

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// maskFrame converts an unmasked server frame into a masked client frame
// with the given key, the way a browser would send it.
func maskFrame(t *testing.T, frame []byte, key [4]byte) []byte {
	t.Helper()

	payloadLen := uint64(frame[1] & 0x7F)
	offset := 2
	switch payloadLen {
	case 126:
		payloadLen = uint64(binary.BigEndian.Uint16(frame[2:]))
		offset = 4
	case 127:
		payloadLen = binary.BigEndian.Uint64(frame[2:])
		offset = 10
	}

	out := make([]byte, 0, len(frame)+4)
	out = append(out, frame[0], frame[1]|0x80)
	out = append(out, frame[2:offset]...)
	out = append(out, key[:]...)
	for i := uint64(0); i < payloadLen; i++ {
		out = append(out, frame[offset+int(i)]^key[i%4])
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"small", 17},
		{"max single byte length", 125},
		{"min 16-bit length", 126},
		{"mid 16-bit length", 4096},
		{"max 16-bit length", 65535},
		{"min 64-bit length", 65536},
		{"large 64-bit length", 200000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.size)
			for i := range payload {
				payload[i] = byte(i % 251)
			}

			encoded := EncodeText(payload)
			frame, consumed, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if frame == nil {
				t.Fatal("DecodeFrame() reported incomplete for a complete frame")
			}
			if consumed != len(encoded) {
				t.Errorf("consumed = %d, want %d", consumed, len(encoded))
			}
			if !frame.Fin {
				t.Error("Fin = false, want true")
			}
			if frame.Opcode != OpcodeText {
				t.Errorf("Opcode = %v, want TEXT", frame.Opcode)
			}
			if frame.Masked {
				t.Error("server-to-client frame must not be masked")
			}
			if !bytes.Equal(frame.Payload, payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d bytes", len(frame.Payload), len(payload))
			}
		})
	}
}

func TestEncodeLengthClasses(t *testing.T) {
	tests := []struct {
		size       int
		wantHeader int
		wantLenVal byte
	}{
		{0, 2, 0},
		{125, 2, 125},
		{126, 4, 126},
		{65535, 4, 126},
		{65536, 10, 127},
	}

	for _, tt := range tests {
		encoded := EncodeText(make([]byte, tt.size))
		if got := len(encoded) - tt.size; got != tt.wantHeader {
			t.Errorf("size %d: header length = %d, want %d", tt.size, got, tt.wantHeader)
		}
		if got := encoded[1] & 0x7F; got != tt.wantLenVal {
			t.Errorf("size %d: length byte = %d, want %d", tt.size, got, tt.wantLenVal)
		}
	}
}

func TestDecodeMaskedFrame(t *testing.T) {
	payload := []byte(`{"type":"join-room","data":{"roomId":"demo","userId":"alice"}}`)
	keys := [][4]byte{
		{0x00, 0x00, 0x00, 0x00},
		{0x12, 0x34, 0x56, 0x78},
		{0xFF, 0xFF, 0xFF, 0xFF},
		{0xDE, 0xAD, 0xBE, 0xEF},
	}

	for _, key := range keys {
		masked := maskFrame(t, EncodeText(payload), key)

		frame, consumed, err := DecodeFrame(masked)
		if err != nil {
			t.Fatalf("DecodeFrame() error = %v", err)
		}
		if frame == nil {
			t.Fatal("DecodeFrame() reported incomplete")
		}
		if consumed != len(masked) {
			t.Errorf("consumed = %d, want %d", consumed, len(masked))
		}
		if !frame.Masked {
			t.Error("Masked = false, want true")
		}
		if frame.MaskKey != key {
			t.Errorf("MaskKey = %v, want %v", frame.MaskKey, key)
		}
		if !bytes.Equal(frame.Payload, payload) {
			t.Errorf("unmasked payload mismatch for key %v", key)
		}
	}
}

func TestDecodeDoesNotMutateInput(t *testing.T) {
	masked := maskFrame(t, EncodeText([]byte("hello")), [4]byte{1, 2, 3, 4})
	original := make([]byte, len(masked))
	copy(original, masked)

	if _, _, err := DecodeFrame(masked); err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if !bytes.Equal(masked, original) {
		t.Error("DecodeFrame mutated its input buffer")
	}
}

func TestDecodeIncomplete(t *testing.T) {
	full := maskFrame(t, EncodeText([]byte("partial frame delivery")), [4]byte{9, 8, 7, 6})

	// Every possible split point must yield incomplete, never an error
	// and never a short frame.
	for cut := 0; cut < len(full); cut++ {
		frame, consumed, err := DecodeFrame(full[:cut])
		if err != nil {
			t.Fatalf("cut %d: unexpected error %v", cut, err)
		}
		if frame != nil {
			t.Fatalf("cut %d: got a frame from a truncated buffer", cut)
		}
		if consumed != 0 {
			t.Fatalf("cut %d: consumed = %d, want 0", cut, consumed)
		}
	}

	frame, consumed, err := DecodeFrame(full)
	if err != nil || frame == nil {
		t.Fatalf("full buffer: frame = %v, err = %v", frame, err)
	}
	if consumed != len(full) {
		t.Errorf("consumed = %d, want %d", consumed, len(full))
	}
}

func TestDecodeIncompleteExtendedLength(t *testing.T) {
	// Declares a 16-bit extended length but the length bytes are cut off.
	buf := []byte{0x81, 126}
	frame, _, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("truncated extended length must be incomplete, got error %v", err)
	}
	if frame != nil {
		t.Fatal("truncated extended length must not decode")
	}

	// Same for the 64-bit form.
	buf = []byte{0x81, 127, 0x00, 0x00, 0x00}
	frame, _, err = DecodeFrame(buf)
	if err != nil || frame != nil {
		t.Fatalf("truncated 64-bit length: frame = %v, err = %v", frame, err)
	}
}

func TestDecodeMultipleFramesInBuffer(t *testing.T) {
	first := maskFrame(t, EncodeText([]byte("one")), [4]byte{1, 1, 1, 1})
	second := maskFrame(t, EncodeText([]byte("two")), [4]byte{2, 2, 2, 2})
	buf := append(append([]byte{}, first...), second...)

	frame, consumed, err := DecodeFrame(buf)
	if err != nil || frame == nil {
		t.Fatalf("first decode: frame = %v, err = %v", frame, err)
	}
	if string(frame.Payload) != "one" {
		t.Errorf("first payload = %q, want %q", frame.Payload, "one")
	}
	if consumed != len(first) {
		t.Fatalf("consumed = %d, want %d", consumed, len(first))
	}

	frame, consumed, err = DecodeFrame(buf[consumed:])
	if err != nil || frame == nil {
		t.Fatalf("second decode: frame = %v, err = %v", frame, err)
	}
	if string(frame.Payload) != "two" {
		t.Errorf("second payload = %q, want %q", frame.Payload, "two")
	}
	if consumed != len(second) {
		t.Errorf("consumed = %d, want %d", consumed, len(second))
	}
}

func TestDecode64BitLengthBeyond32Bits(t *testing.T) {
	// A declared length above 2^32 must be read from the full 64-bit
	// field and rejected as oversized, not truncated to its low 32 bits
	// (which here would be zero).
	buf := make([]byte, 10)
	buf[0] = 0x81
	buf[1] = 127
	binary.BigEndian.PutUint64(buf[2:], 1<<32)

	frame, consumed, err := DecodeFrame(buf)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
	if frame != nil || consumed != 0 {
		t.Errorf("frame = %v, consumed = %d, want nil and 0", frame, consumed)
	}
}

func TestDecodeOversizedFrame(t *testing.T) {
	buf := make([]byte, 10)
	buf[0] = 0x81
	buf[1] = 127
	binary.BigEndian.PutUint64(buf[2:], MaxFramePayloadSize+1)

	_, _, err := DecodeFrame(buf)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestDecodeInvalidOpcode(t *testing.T) {
	buf := []byte{0x83, 0x00} // fin=1, opcode=3 (reserved)
	_, _, err := DecodeFrame(buf)
	if !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("err = %v, want ErrInvalidOpcode", err)
	}
}

func TestDecodeFragmentedControlFrame(t *testing.T) {
	buf := []byte{0x08, 0x00} // fin=0, opcode=close
	_, _, err := DecodeFrame(buf)
	if !errors.Is(err, ErrFragmentedControl) {
		t.Fatalf("err = %v, want ErrFragmentedControl", err)
	}
}

func TestEncodeClose(t *testing.T) {
	encoded := EncodeClose()
	if !bytes.Equal(encoded, []byte{0x88, 0x00}) {
		t.Errorf("EncodeClose() = %v, want [0x88 0x00]", encoded)
	}
}
