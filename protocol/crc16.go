package protocol

// CRC16 computes the CRC-16/MCRF4XX of data (reflected 0x1021, init 0xFFFF)
// one byte at a time without a table
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
