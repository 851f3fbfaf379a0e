// Package protocol implements the framed serial link between the host tool and the
// mailbox relay firmware.
//
// Every frame is
//
//	len seq payload... crc_hi crc_lo 0x7E
//
// where len counts the whole frame, the high nibble of seq is always 0x10 and the
// payload is a VLQ command id followed by VLQ encoded arguments.
package protocol

// Version is the link protocol version reported by identify
const Version = "s3mu-relay 1"

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax sizes the device output scratch buffer (several frames per poll)
	MessageMax = 512
)

// Frame is one validated link frame
type Frame struct {
	Sequence uint8
	Payload  []byte // command id and arguments, without header and trailer
}

// nextSequence advances a sequence byte within the 0x10-0x1F window
func nextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
