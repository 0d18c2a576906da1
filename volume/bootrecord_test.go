package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func TestBootRecordEncodeDecodeRoundTrip(t *testing.T) {
	boot := NewBootRecord(0, 256, 2, 1, 0xDEADBEEF)
	data, err := boot.Encode()
	require.NoError(t, err)
	require.Len(t, data, SectorSize)

	image := make([]byte, SectorSize)
	copy(image, data)
	device := NewDevice(bytesextra.NewReadWriteSeeker(image))

	decoded, err := ReadBootRecord(device)
	require.NoError(t, err)
	assert.True(t, decoded.Valid())
	assert.Equal(t, uint64(0), decoded.BaseOffset())
	assert.Equal(t, uint64(256), decoded.TotalSectors())
	assert.Equal(t, uint64(2), decoded.RootSector())
	assert.Equal(t, uint64(1), decoded.BitmapSectors())
	assert.Equal(t, uint64(0xDEADBEEF), decoded.UniqueID())
}

func TestBootRecordInvalidSignatures(t *testing.T) {
	image := make([]byte, SectorSize)
	device := NewDevice(bytesextra.NewReadWriteSeeker(image))

	boot, err := ReadBootRecord(device)
	require.NoError(t, err)
	assert.False(t, boot.Valid())
}
