// Package mailbox implements the word-granular transport between application firmware and
// the secure enclave through the S3MU messaging unit register banks.
package mailbox

// Bank capacities of the S3MU messaging unit
const (
	TxSlotCount = 8 // TR0..TR7
	RxSlotCount = 4 // RR0..RR3
)

// Registers is the hardware capability the transport drives.
// Platform code supplies the real register block; tests supply doubles.
type Registers interface {
	// TxStatus returns the transmit status mask (bit i set: TR[i] free)
	TxStatus() uint32

	// RxStatus returns the receive status mask (bit i set: RR[i] holds unread data)
	RxStatus() uint32

	// WriteTx stores one word into transmit slot register TR[slot]
	WriteTx(slot int, word uint32)

	// ReadRx loads one word from receive slot register RR[slot]
	ReadRx(slot int) uint32
}

// slotMask returns the status bit for a slot
func slotMask(slot int) uint32 {
	return 1 << uint(slot)
}
