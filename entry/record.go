// Package entry implements the in-memory views of on-disk RedSea directory
// records: the 64-byte record itself, the file and directory abstractions
// layered over it, and their resize/delete/flush behavior.
package entry

import (
	"bytes"
	"encoding/binary"
	"fmt"

	rs "github.com/puckipedia/RedSeaFS"
)

// RecordSize is the fixed on-disk size of a directory entry (spec §3).
const RecordSize = 64

// MaxNameLength is the longest name a record can hold, NUL-terminated within
// the 38-byte name field.
const MaxNameLength = 37

// rawRecord is the exact 64-byte on-disk layout.
type rawRecord struct {
	Attributes  uint16
	Name        [38]byte
	FirstSector uint64
	Size        uint64
	DateTime    uint64
}

// Record is the in-memory view of one on-disk directory record (spec §3,
// §4.4). The FirstSector field is always held in volume-relative form;
// base_offset is added back only transiently during encode/decode of the
// on-disk bytes.
type Record struct {
	raw rawRecord
}

// DecodeRecord parses a 64-byte on-disk record. firstSector is converted
// from absolute to volume-relative form by subtracting baseOffset.
func DecodeRecord(data []byte, baseOffset uint64) (Record, error) {
	if len(data) != RecordSize {
		return Record{}, fmt.Errorf("directory record must be %d bytes, got %d", RecordSize, len(data))
	}

	var raw rawRecord
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return Record{}, rs.ErrIO.Wrap(err)
	}
	raw.FirstSector -= baseOffset
	return Record{raw: raw}, nil
}

// Encode serializes the record back to its 64-byte on-disk form, re-offsetting
// FirstSector by +baseOffset as it goes out (spec invariant 6). The in-memory
// record is left unmodified: the caller keeps volume-relative addressing.
func (r *Record) Encode(baseOffset uint64) ([]byte, error) {
	onDisk := r.raw
	onDisk.FirstSector += baseOffset

	buf := &bytes.Buffer{}
	buf.Grow(RecordSize)
	if err := binary.Write(buf, binary.LittleEndian, onDisk); err != nil {
		return nil, rs.ErrIO.Wrap(err)
	}
	return buf.Bytes(), nil
}

func (r *Record) Attributes() uint16     { return r.raw.Attributes }
func (r *Record) SetAttributes(v uint16) { r.raw.Attributes = v }

func (r *Record) Name() string {
	n := bytes.IndexByte(r.raw.Name[:], 0)
	if n < 0 {
		n = len(r.raw.Name)
	}
	return string(r.raw.Name[:n])
}

// SetName truncates name to MaxNameLength characters and NUL-terminates it.
func (r *Record) SetName(name string) {
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	var buf [38]byte
	copy(buf[:], name)
	r.raw.Name = buf
}

func (r *Record) FirstSector() uint64     { return r.raw.FirstSector }
func (r *Record) SetFirstSector(s uint64) { r.raw.FirstSector = s }

func (r *Record) Size() uint64     { return r.raw.Size }
func (r *Record) SetSize(s uint64) { r.raw.Size = s }

func (r *Record) DateTime() rs.Timestamp     { return rs.Timestamp(r.raw.DateTime) }
func (r *Record) SetDateTime(t rs.Timestamp) { r.raw.DateTime = uint64(t) }

func (r *Record) IsDirectory() bool { return r.raw.Attributes&rs.AttrDir != 0 }
func (r *Record) IsDeleted() bool   { return r.raw.Attributes&rs.AttrDeleted != 0 }

// IsLive reports whether the slot holds a usable entry: non-zero attributes
// and the DELETED bit clear.
func (r *Record) IsLive() bool {
	return r.raw.Attributes != 0 && !r.IsDeleted()
}

// IsNeverUsed reports whether the slot has never held an entry.
func (r *Record) IsNeverUsed() bool { return r.raw.Attributes == 0 }

// MarkDeleted sets the DELETED attribute bit, tombstoning the slot.
func (r *Record) MarkDeleted() { r.raw.Attributes |= rs.AttrDeleted }

// SizeInSectors returns the number of sectors this record's payload occupies.
func (r *Record) SizeInSectors() uint64 {
	return (r.raw.Size + 511) / 512
}

// NewRecord builds a fresh in-memory record, not yet associated with a slot
// on disk.
func NewRecord(attributes uint16, name string, firstSector, size uint64) Record {
	rec := Record{raw: rawRecord{Attributes: attributes, FirstSector: firstSector, Size: size}}
	rec.SetName(name)
	return rec
}
