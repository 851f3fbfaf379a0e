package mailbox

// Checksum folds the words of a message together with exclusive-or.
// The enclave computes the same fold; it is not a CRC and must not be strengthened.
func Checksum(words []uint32) uint32 {
	var sum uint32
	for _, w := range words {
		sum ^= w
	}
	return sum
}
