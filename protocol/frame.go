package protocol

import (
	"bytes"
	"errors"
)

// ErrFrameTooLong reports a payload that does not fit in MessageLengthMax
var ErrFrameTooLong = errors.New("protocol: frame too long")

// deframer extracts validated frames from a byte stream.
// After any malformed frame it drops bytes up to the next sync byte.
type deframer struct {
	lost     bool
	resynced bool // set when sync was regained, cleared by the owner
}

// next scans data for the next complete frame.
// It returns the frame, the number of bytes consumed (including any skipped garbage)
// and whether a frame was found. An incomplete trailing frame is left unconsumed.
func (d *deframer) next(data []byte) (Frame, int, bool) {
	pos := 0
	for pos < len(data) {
		rest := data[pos:]
		if d.lost {
			i := bytes.IndexByte(rest, MessageValueSync)
			if i < 0 {
				return Frame{}, len(data), false
			}
			pos += i + 1
			d.lost = false
			d.resynced = true
			continue
		}
		if rest[0] == MessageValueSync {
			pos++
			continue
		}
		if len(rest) < MessageLengthMin {
			break
		}
		n := int(rest[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			d.lost = true
			continue
		}
		if rest[MessagePositionSeq]&^MessageSeqMask != MessageDest {
			d.lost = true
			continue
		}
		if len(rest) < n {
			break
		}
		if rest[n-MessageTrailerSync] != MessageValueSync {
			d.lost = true
			continue
		}
		crc := uint16(rest[n-MessageTrailerCRC])<<8 | uint16(rest[n-MessageTrailerCRC+1])
		if crc != CRC16(rest[:n-MessageTrailerSize]) {
			d.lost = true
			continue
		}
		f := Frame{
			Sequence: rest[MessagePositionSeq],
			Payload:  rest[MessageHeaderSize : n-MessageTrailerSize],
		}
		return f, pos + n, true
	}
	return Frame{}, pos, false
}

// AppendFrame wraps payload in header and trailer and appends the frame to dst
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	n := MessageHeaderSize + len(payload) + MessageTrailerSize
	if n > MessageLengthMax {
		return dst, ErrFrameTooLong
	}
	start := len(dst)
	dst = append(dst, uint8(n), seq)
	dst = append(dst, payload...)
	dst = appendCRC16(dst, CRC16(dst[start:]))
	return append(dst, MessageValueSync), nil
}
