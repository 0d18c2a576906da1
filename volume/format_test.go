package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func TestFormatProducesMountableVolume(t *testing.T) {
	image, rootSector, err := Format(64, 1, 0, 42)
	require.NoError(t, err)
	require.Len(t, image, 64*SectorSize)
	assert.Equal(t, uint64(2), rootSector)

	device := NewDevice(bytesextra.NewReadWriteSeeker(image))
	vol, err := Mount(device)
	require.NoError(t, err)

	assert.True(t, vol.Boot.Valid())
	assert.Equal(t, uint64(64), vol.Boot.TotalSectors())
	assert.Equal(t, rootSector, vol.Boot.RootSector()-vol.Boot.BaseOffset())
	assert.False(t, vol.Bitmap.IsFree(rootSector), "root sector must be reserved in the formatted bitmap")
}

func TestFormatRejectsZeroBitmapSectors(t *testing.T) {
	_, _, err := Format(64, 0, 0, 1)
	assert.Error(t, err)
}

func TestFormatRejectsUndersizedVolume(t *testing.T) {
	_, _, err := Format(1, 1, 0, 1)
	assert.Error(t, err)
}
