package entry

import (
	rs "github.com/puckipedia/RedSeaFS"
	"github.com/puckipedia/RedSeaFS/volume"
)

// Directory is a slot array layered over a directory's own contiguous
// extent: slot 0 holds the directory's own record (a self-reference), slot 1
// holds the parent's record (the ".." back-reference), and slots 2.. hold
// children (spec §4.6). Slots never shrink the array; removal tombstones a
// slot rather than compacting it.
type Directory struct {
	self *Entry

	vol         *volume.Volume
	firstSector uint64
	entryCount  int
	cache       []uint16 // attribute word per slot, length entryCount
}

// OpenDirectory builds a Directory view over the directory whose first
// sector is self.FirstSector(). It always re-reads the canonical self-slot
// at entry_location = first_sector*512 (spec §4.6), rather than trusting
// self's own entry_location: self may be a copy found via a parent's
// table, whose location is the parent's slot, not the directory's own
// extent, and writing back through that copy would never correct the real
// self-slot on a later resize.
func OpenDirectory(vol *volume.Volume, self *Entry) (*Directory, error) {
	canonical, err := ReadEntry(vol, self.FirstSector()*volume.SectorSize, nil)
	if err != nil {
		return nil, err
	}
	d := &Directory{self: canonical, vol: vol}
	canonical.directory = d
	if err := d.refreshCache(); err != nil {
		return nil, err
	}
	return d, nil
}

// Self returns the entry backing this directory's own slot-0 record.
func (d *Directory) Self() *Entry { return d.self }

// CountEntries returns the number of live (non-tombstoned, ever-used)
// children, excluding the self and parent slots.
func (d *Directory) CountEntries() int {
	count := 0
	for i := 2; i < d.entryCount; i++ {
		if isLiveAttr(d.cache[i]) {
			count++
		}
	}
	return count
}

// refreshCache re-reads every slot's attribute word and recomputes
// entryCount from the directory's current size. Called after construction
// and after any flush that may have changed the directory's extent or a
// slot's contents.
func (d *Directory) refreshCache() error {
	d.firstSector = d.self.FirstSector()
	d.entryCount = int(d.self.Size() / RecordSize)

	cache := make([]uint16, d.entryCount)
	for i := 0; i < d.entryCount; i++ {
		attrs, err := d.readSlotAttrs(i)
		if err != nil {
			return err
		}
		cache[i] = attrs
	}
	d.cache = cache
	return nil
}

func (d *Directory) slotOffset(slot int) int64 {
	return int64(d.firstSector)*volume.SectorSize + int64(slot)*RecordSize
}

func (d *Directory) readSlotAttrs(slot int) (uint16, error) {
	data := make([]byte, RecordSize)
	n, err := d.vol.Device.ReadAt(d.slotOffset(slot), data)
	if err != nil {
		return 0, rs.ErrIO.Wrap(err)
	}
	if n != RecordSize {
		return 0, rs.ErrIO.WithMessage("short read of directory slot")
	}
	rec, err := DecodeRecord(data, d.vol.Boot.BaseOffset())
	if err != nil {
		return 0, err
	}
	return rec.Attributes(), nil
}

func isLiveAttr(attrs uint16) bool {
	return attrs != 0 && attrs&rs.AttrDeleted == 0
}

// asDriverError coerces a plain error into a DriverError, wrapping it as I/O
// if it isn't one already (DecodeRecord, for instance, can surface a bare
// error on malformed input).
func asDriverError(err error) rs.DriverError {
	if de, ok := err.(rs.DriverError); ok {
		return de
	}
	return rs.ErrIO.Wrap(err)
}

// GetEntry returns the i'th live child (0-indexed, skipping tombstoned and
// never-used slots, and skipping the self and parent slots).
func (d *Directory) GetEntry(i int) (*Entry, error) {
	if i < 0 {
		return nil, rs.ErrInvalidArgument
	}
	seen := 0
	for slot := 2; slot < d.entryCount; slot++ {
		if !isLiveAttr(d.cache[slot]) {
			continue
		}
		if seen == i {
			return ReadEntry(d.vol, uint64(d.slotOffset(slot)), d)
		}
		seen++
	}
	return nil, rs.ErrNotFound
}

// Lookup scans live children for one named name.
func (d *Directory) Lookup(name string) (*Entry, error) {
	for slot := 2; slot < d.entryCount; slot++ {
		if !isLiveAttr(d.cache[slot]) {
			continue
		}
		e, err := ReadEntry(d.vol, uint64(d.slotOffset(slot)), d)
		if err != nil {
			return nil, err
		}
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, rs.ErrNotFound
}

// firstFreeSlot returns the lowest-indexed slot (>= 2) that is either
// never-used or tombstoned, or -1 if the directory is full.
func (d *Directory) firstFreeSlot() int {
	for slot := 2; slot < d.entryCount; slot++ {
		if !isLiveAttr(d.cache[slot]) {
			return slot
		}
	}
	return -1
}

// grow extends the directory by one sector (512/RecordSize = 8 more slots) to
// make room for a new child, via the same Resize path a file uses.
func (d *Directory) grow() error {
	newSize := d.self.Size() + volume.SectorSize
	if err := d.self.Resize(newSize); err != nil {
		return err
	}
	if err := d.self.Flush(); err != nil {
		return err
	}
	return nil
}

// writeSlot encodes rec into the given slot and flushes it, keeping the
// cache consistent.
func (d *Directory) writeSlot(slot int, rec Record) (*Entry, error) {
	e := newEntry(d.vol, uint64(d.slotOffset(slot)), rec, d)
	if err := e.Flush(); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateFile allocates size bytes of contiguous storage, writes a new
// regular-file record into the first free slot (growing the directory if
// necessary), and returns the new entry.
func (d *Directory) CreateFile(name string, size uint64) (*Entry, rs.DriverError) {
	sectors := volume.SectorsFor(size)
	first, ok := d.vol.Bitmap.Allocate(sectors)
	if !ok {
		return nil, rs.ErrNoSpace
	}

	slot := d.firstFreeSlot()
	if slot < 0 {
		if err := d.grow(); err != nil {
			d.vol.Bitmap.Deallocate(first, sectors)
			return nil, asDriverError(err)
		}
		slot = d.firstFreeSlot()
		if slot < 0 {
			d.vol.Bitmap.Deallocate(first, sectors)
			return nil, rs.ErrIO.WithMessage("directory grew but still has no free slot")
		}
	}

	rec := NewRecord(rs.AttrContiguous, name, first, size)
	e, err := d.writeSlot(slot, rec)
	if err != nil {
		d.vol.Bitmap.Deallocate(first, sectors)
		return nil, asDriverError(err)
	}
	return e, nil
}

// CreateDirectory allocates slotCount slots' worth of sectors for a new
// subdirectory, writes its self-slot and ".." parent back-reference, and
// links it into this directory's first free slot.
func (d *Directory) CreateDirectory(name string, slotCount int) (*Directory, rs.DriverError) {
	if slotCount < 2 {
		slotCount = 2
	}
	sectors := volume.SectorsFor(uint64(slotCount) * RecordSize)
	first, ok := d.vol.Bitmap.Allocate(sectors)
	if !ok {
		return nil, rs.ErrNoSpace
	}

	slot := d.firstFreeSlot()
	if slot < 0 {
		if err := d.grow(); err != nil {
			d.vol.Bitmap.Deallocate(first, sectors)
			return nil, asDriverError(err)
		}
		slot = d.firstFreeSlot()
		if slot < 0 {
			d.vol.Bitmap.Deallocate(first, sectors)
			return nil, rs.ErrIO.WithMessage("directory grew but still has no free slot")
		}
	}

	size := sectors * volume.SectorSize
	linkRec := NewRecord(rs.AttrDir|rs.AttrContiguous, name, first, size)
	if _, err := d.writeSlot(slot, linkRec); err != nil {
		d.vol.Bitmap.Deallocate(first, sectors)
		return nil, asDriverError(err)
	}

	// child's self-slot lives at entry_location = first*512, inside its own
	// extent, not the copy just linked into d's table above; build it the
	// way FormatRootDirectory does, wiring directory only after self exists
	// so Flush's refreshCache doesn't run against a half-built Directory.
	child := &Directory{vol: d.vol, firstSector: first, entryCount: slotCount}
	selfRec := NewRecord(rs.AttrDir|rs.AttrContiguous, name, first, size)
	selfEnt := newEntry(d.vol, uint64(child.slotOffset(0)), selfRec, nil)
	if err := selfEnt.Flush(); err != nil {
		return nil, asDriverError(err)
	}
	child.self = selfEnt
	selfEnt.directory = child

	parentSize := d.self.Size()
	parentRec := NewRecord(rs.AttrDir|rs.AttrContiguous, "..", d.firstSector, parentSize)
	if _, err := child.writeSlot(1, parentRec); err != nil {
		return nil, asDriverError(err)
	}

	if err := child.refreshCache(); err != nil {
		return nil, asDriverError(err)
	}
	return child, nil
}

// FormatRootDirectory writes the self-slot and ".." back-reference for a
// brand-new volume's root directory at rootSector (whose ".." points at
// itself, per spec invariant 4) and returns it opened as a Directory. Used
// by mkfs, after volume.Format has reserved rootSector in the bitmap.
func FormatRootDirectory(vol *volume.Volume, rootSector uint64) (*Directory, error) {
	size := uint64(volume.SectorSize)
	selfEnt := newEntry(vol, rootSector*volume.SectorSize, NewRecord(rs.AttrDir|rs.AttrContiguous, ".", rootSector, size), nil)
	if err := selfEnt.Flush(); err != nil {
		return nil, err
	}

	dir := &Directory{self: selfEnt, vol: vol, firstSector: rootSector, entryCount: int(size / RecordSize)}
	selfEnt.directory = dir

	parentEnt := newEntry(vol, rootSector*volume.SectorSize+RecordSize, NewRecord(rs.AttrDir|rs.AttrContiguous, "..", rootSector, size), dir)
	if err := parentEnt.Flush(); err != nil {
		return nil, err
	}
	return dir, nil
}

// RemoveEntry tombstones e's slot by marking it DELETED and flushing. It
// does not deallocate e's sectors; callers call e.Delete() first when the
// entry's storage should also be released.
func (d *Directory) RemoveEntry(e *Entry) error {
	e.Record().MarkDeleted()
	return e.Flush()
}

// AdoptEntry writes an already-allocated record (its sectors are untouched)
// into this directory's first free slot, growing the directory first if
// necessary. Used by rename, which relocates a record between slots without
// touching the bitmap.
func (d *Directory) AdoptEntry(rec *Record) (*Entry, rs.DriverError) {
	slot := d.firstFreeSlot()
	if slot < 0 {
		if err := d.grow(); err != nil {
			return nil, asDriverError(err)
		}
		slot = d.firstFreeSlot()
		if slot < 0 {
			return nil, rs.ErrIO.WithMessage("directory grew but still has no free slot")
		}
	}

	e, err := d.writeSlot(slot, *rec)
	if err != nil {
		return nil, asDriverError(err)
	}
	return e, nil
}
