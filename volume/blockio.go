// Package volume implements the bottom three layers of the RedSea engine: the
// block I/O primitive, the boot record, and the sector allocation bitmap.
package volume

import (
	"fmt"
	"io"
)

// SectorSize is the fixed sector granularity of every RedSea volume.
const SectorSize = 512

// Device is a positioned byte-range reader/writer over an opaque block
// device handle, at sector granularity. There is no caching at this layer;
// every call seeks then reads or writes (spec §4.1). Opening the underlying
// stream is the caller's concern.
type Device struct {
	stream io.ReadWriteSeeker
}

// NewDevice wraps an already-open stream. The stream is assumed to have been
// opened read-write; read-only enforcement happens above this layer.
func NewDevice(stream io.ReadWriteSeeker) *Device {
	return &Device{stream: stream}
}

// ReadAt reads up to len(dst) bytes starting at the given byte offset. The
// actual byte count read is returned even on a short read or error, matching
// the positioned read()/write() semantics the original driver relies on.
func (d *Device) ReadAt(offset int64, dst []byte) (int, error) {
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking to offset %d: %w", offset, err)
	}
	return d.stream.Read(dst)
}

// WriteAt writes src starting at the given byte offset.
func (d *Device) WriteAt(offset int64, src []byte) (int, error) {
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking to offset %d: %w", offset, err)
	}
	return d.stream.Write(src)
}

// ReadSectors reads exactly n sectors beginning at the given volume-relative
// sector, returning [redseafs.ErrIO]-worthy errors on short reads.
func (d *Device) ReadSectors(sector uint64, n uint64) ([]byte, error) {
	buf := make([]byte, n*SectorSize)
	nRead, err := d.ReadAt(int64(sector*SectorSize), buf)
	if err != nil {
		return nil, err
	}
	if uint64(nRead) != uint64(len(buf)) {
		return nil, fmt.Errorf("short read at sector %d: got %d of %d bytes", sector, nRead, len(buf))
	}
	return buf, nil
}

// WriteSectors writes data (a whole multiple of SectorSize) beginning at the
// given volume-relative sector.
func (d *Device) WriteSectors(sector uint64, data []byte) error {
	nWritten, err := d.WriteAt(int64(sector*SectorSize), data)
	if err != nil {
		return err
	}
	if nWritten != len(data) {
		return fmt.Errorf("short write at sector %d: wrote %d of %d bytes", sector, nWritten, len(data))
	}
	return nil
}
