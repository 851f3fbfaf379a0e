package protocol

// CRC16 computes the CCITT flavoured checksum carried in every frame trailer
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		w := uint16(b)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}

// appendCRC16 appends crc big-endian
func appendCRC16(dst []byte, crc uint16) []byte {
	return append(dst, uint8(crc>>8), uint8(crc))
}
