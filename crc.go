package sdspi

// crc7 computes the 7 bit checksum (polynomial x^7 + x^3 + 1) that protects
// command frames and the CSD/CID registers. The register byte on the wire is
// crc7<<1 | 1.
func crc7(data []byte) byte {
	var crc byte
	for _, d := range data {
		for i := 0; i < 8; i++ {
			crc <<= 1
			if (d^crc)&0x80 != 0 {
				crc ^= 0x09
			}
			d <<= 1
		}
	}
	return crc & 0x7F
}

// crc16 computes the CCITT checksum (polynomial x^16 + x^12 + x^5 + 1,
// initial value 0) that trails every data block.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, d := range data {
		crc ^= uint16(d) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
