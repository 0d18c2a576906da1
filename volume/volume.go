package volume

import (
	"fmt"

	rs "github.com/puckipedia/RedSeaFS"
)

// Volume ties the block device, the immutable boot record, and the live
// allocation bitmap together. It is the shared, non-owning handle every
// directory entry carries a pointer to (spec Design Notes: entries reference
// the volume by non-owning handle to avoid ownership cycles).
type Volume struct {
	Device *Device
	Boot   *BootRecord
	Bitmap *Allocator
}

// Mount reads the boot record and allocation bitmap from device and
// validates the volume. It fails with [redseafs.ErrInvalidVolume] if the
// boot record's signatures don't match.
func Mount(device *Device) (*Volume, error) {
	boot, err := ReadBootRecord(device)
	if err != nil {
		return nil, rs.ErrIO.Wrap(err)
	}
	if !boot.Valid() {
		return nil, rs.ErrInvalidVolume
	}

	if boot.BitmapSectors() == 0 {
		return nil, rs.ErrInvalidVolume.WithMessage("bitmap_sectors is 0")
	}

	bitmapBytes, err := device.ReadSectors(1, boot.BitmapSectors())
	if err != nil {
		return nil, rs.ErrIO.Wrap(fmt.Errorf("reading allocation bitmap: %w", err))
	}

	reserved := boot.BitmapSectors() + 1
	return &Volume{
		Device: device,
		Boot:   boot,
		Bitmap: NewAllocator(bitmapBytes, reserved),
	}, nil
}

// FlushBitmap writes the entire in-memory bitmap to volume byte offset 512.
func (v *Volume) FlushBitmap() error {
	if err := v.Device.WriteSectors(1, v.Bitmap.Bytes()); err != nil {
		return rs.ErrIO.Wrap(err)
	}
	return nil
}

// SectorToVolumeOffset converts a volume-relative sector into a byte offset
// within this volume (not accounting for base_offset, which only matters for
// the absolute, on-disk form of a first-sector field).
func (v *Volume) SectorToVolumeOffset(sector uint64) int64 {
	return int64(sector) * SectorSize
}

// SectorsFor returns the number of whole sectors needed to hold size bytes.
func SectorsFor(size uint64) uint64 {
	return (size + SectorSize - 1) / SectorSize
}
