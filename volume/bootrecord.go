package volume

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const bootSignature1 = 0x88
const bootSignature2 = 0xAA55

// rawBootRecord is the exact 512-byte on-disk layout of sector 0 (spec §3).
// Field order matters: encoding/binary walks it sequentially regardless of
// Go's native struct padding.
type rawBootRecord struct {
	JumpAndNop    [3]byte
	Signature     byte
	Reserved      [4]byte
	BaseOffsetV   uint64
	CountV        uint64
	RootSectorV   uint64
	BitmapSectorsV uint64
	UniqueIDV     uint64
	BootCode      [462]byte
	Signature2 uint16
}

// BootRecord holds the parsed, immutable contents of a volume's superblock.
// It is read once at mount and held for the lifetime of the volume.
type BootRecord struct {
	raw rawBootRecord
}

// ReadBootRecord reads and decodes sector 0 of device. It does not validate
// the signatures; call Valid() to do so, matching the engine's historical
// "construct first, check validity separately" pattern.
func ReadBootRecord(device *Device) (*BootRecord, error) {
	buf, err := device.ReadSectors(0, 1)
	if err != nil {
		return nil, fmt.Errorf("reading boot record: %w", err)
	}

	var raw rawBootRecord
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("decoding boot record: %w", err)
	}
	return &BootRecord{raw: raw}, nil
}

// Valid reports whether both on-disk signatures are present. An invalid
// volume fails mount (spec §3, §7).
func (b *BootRecord) Valid() bool {
	return b.raw.Signature == bootSignature1 && b.raw.Signature2 == bootSignature2
}

func (b *BootRecord) BaseOffset() uint64    { return b.raw.BaseOffsetV }
func (b *BootRecord) TotalSectors() uint64  { return b.raw.CountV }
func (b *BootRecord) RootSector() uint64    { return b.raw.RootSectorV }
func (b *BootRecord) BitmapSectors() uint64 { return b.raw.BitmapSectorsV }
func (b *BootRecord) UniqueID() uint64      { return b.raw.UniqueIDV }

// NewBootRecord constructs a fresh, valid boot record for formatting a new
// volume (used by the redseafsutil mkfs command).
func NewBootRecord(baseOffset, count, rootSector, bitmapSectors, uniqueID uint64) *BootRecord {
	return &BootRecord{raw: rawBootRecord{
		Signature:      bootSignature1,
		BaseOffsetV:    baseOffset,
		CountV:         count,
		RootSectorV:    rootSector,
		BitmapSectorsV: bitmapSectors,
		UniqueIDV:      uniqueID,
		Signature2:     bootSignature2,
	}}
}

// Encode serializes the boot record back to its 512-byte on-disk form.
func (b *BootRecord) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Grow(SectorSize)
	if err := binary.Write(buf, binary.LittleEndian, b.raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
