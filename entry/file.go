package entry

import rs "github.com/puckipedia/RedSeaFS"

// File is a thin bounded view over an Entry's contiguous extent
// [first_sector*512, first_sector*512+size) (spec §4.5).
type File struct {
	*Entry
}

// AsFile wraps an Entry known to be a regular file.
func AsFile(e *Entry) *File { return &File{Entry: e} }

// Read fills dst with up to len(dst) bytes starting at offset, clamped to the
// file's current size. An offset past the end of the file fails.
func (f *File) Read(offset uint64, dst []byte) (int, rs.DriverError) {
	size := f.Size()
	if offset > size {
		return 0, rs.ErrInvalidArgument.WithMessage("read offset past end of file")
	}

	n := uint64(len(dst))
	if offset+n > size {
		n = size - offset
	}

	byteOffset := int64(f.FirstSector())*512 + int64(offset)
	read, err := f.Volume().Device.ReadAt(byteOffset, dst[:n])
	if err != nil {
		return read, rs.ErrIO.Wrap(err)
	}
	return read, nil
}

// Write writes up to len(src) bytes starting at offset, clamped to the
// file's current size. Writing past the current size requires the caller to
// Resize() first (spec §4.5); this call never grows the file itself.
func (f *File) Write(offset uint64, src []byte) (int, rs.DriverError) {
	size := f.Size()
	if offset > size {
		return 0, rs.ErrInvalidArgument.WithMessage("write offset past end of file")
	}

	n := uint64(len(src))
	if offset+n > size {
		n = size - offset
	}

	byteOffset := int64(f.FirstSector())*512 + int64(offset)
	written, err := f.Volume().Device.WriteAt(byteOffset, src[:n])
	if err != nil {
		return written, rs.ErrIO.Wrap(err)
	}
	return written, nil
}
