package sdspi

// Geometry is the CHS view of a flat sector count. It is derived and not
// authoritative, the parameters are chosen to reproduce the drive table of a
// well known emulator so that software which recomputes CHS from the sector
// count on its own ends up with the same values as this driver.
type Geometry struct {
	Cylinders       uint16
	Heads           uint16
	SectorsPerTrack uint16
}

// sectorsPerTrackTable lists the candidates in probe order.
var sectorsPerTrackTable = [...]uint32{63, 127, 255}

// computeGeometry picks the first (sectors per track, heads) pair whose
// cylinder count passes the size tiered acceptance rule. The nested probe
// order must not change, it is what keeps the result bit-for-bit compatible
// with the external table.
func computeGeometry(totalSectors uint32) Geometry {
	for _, spt := range sectorsPerTrackTable {
		for heads := uint32(4); heads <= 16; heads++ {
			cylinders := totalSectors / (heads * spt)

			switch {
			case totalSectors <= 1<<20:
				if cylinders <= 1023 {
					return Geometry{uint16(cylinders), uint16(heads), uint16(spt)}
				}
			case cylinders < 16383,
				cylinders < 32767 && heads >= 5,
				cylinders <= 65535:
				return Geometry{uint16(cylinders), uint16(heads), uint16(spt)}
			}
		}
	}

	// The table has no entry for a card this large, clamp to the biggest
	// addressable geometry.
	cylinders := totalSectors / (16 * 255)
	if cylinders > 65535 {
		cylinders = 65535
	}
	return Geometry{uint16(cylinders), 16, 255}
}

// blockShift returns the smallest shift that reduces blockSize to 1, which is
// log2 for the power-of-two sector sizes the cards report.
func blockShift(blockSize uint32) uint {
	var shift uint
	for blockSize>>shift > 1 {
		shift++
	}
	return shift
}
