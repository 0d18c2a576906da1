package volume

import (
	"fmt"

	"github.com/noxer/bytewriter"
)

// Format builds a brand-new RedSea volume image of totalSectors sectors,
// reserving bitmapSectors sectors for the allocation bitmap, and writes a
// freshly initialized boot record and an all-clear bitmap (save for the
// single sector reserved for the root directory) into a fixed-size buffer,
// mirroring the teacher's own mkfs writer (`file_systems/unixv1/format.go`),
// which builds a disk image with `bytewriter.New` over a pre-sized slice
// rather than streaming writes.
//
// It returns the formatted image and the volume-relative sector reserved for
// the root directory; the caller (redseatest, or the `mkfs` CLI command)
// still must write the root directory's own self/parent slots there, since
// that is a directory-entry concern, not a volume one.
func Format(totalSectors, bitmapSectors, baseOffset, uniqueID uint64) ([]byte, uint64, error) {
	if bitmapSectors == 0 {
		return nil, 0, fmt.Errorf("bitmapSectors must be non-zero")
	}
	reserved := bitmapSectors + 1
	rootSector := reserved
	if totalSectors <= rootSector {
		return nil, 0, fmt.Errorf("totalSectors %d too small for %d bitmap sectors", totalSectors, bitmapSectors)
	}

	image := make([]byte, totalSectors*SectorSize)
	writer := bytewriter.New(image)

	boot := NewBootRecord(baseOffset, totalSectors, rootSector+baseOffset, bitmapSectors, uniqueID)
	bootBytes, err := boot.Encode()
	if err != nil {
		return nil, 0, err
	}
	if _, err := writer.Write(bootBytes); err != nil {
		return nil, 0, err
	}

	bmp := NewAllocator(make([]byte, bitmapSectors*SectorSize), reserved)
	bmp.ForceAllocate(rootSector)
	if _, err := writer.Write(bmp.Bytes()); err != nil {
		return nil, 0, err
	}

	return image, rootSector, nil
}
