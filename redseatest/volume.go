// Package redseatest builds small in-memory RedSea volumes for use by other
// packages' tests, modeled on the teacher's testing/images.go helper.
package redseatest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/puckipedia/RedSeaFS/entry"
	"github.com/puckipedia/RedSeaFS/volume"
)

// DefaultBitmapSectors is big enough to address 4096 data sectors (2 MiB),
// comfortably more than any test volume below needs.
const DefaultBitmapSectors = 1

// DefaultTotalSectors sizes a small scratch volume: one boot sector, one
// bitmap sector (4096 addressable data sectors), and headroom for test data.
const DefaultTotalSectors = 256

// NewVolume formats and mounts a fresh volume of totalSectors sectors with a
// freshly initialized root directory, backed entirely in memory.
func NewVolume(t *testing.T, totalSectors uint64) (*volume.Volume, *entry.Directory) {
	t.Helper()

	image, rootSector, err := volume.Format(totalSectors, DefaultBitmapSectors, 0, 1)
	require.NoError(t, err)

	device := volume.NewDevice(bytesextra.NewReadWriteSeeker(image))
	vol, err := volume.Mount(device)
	require.NoError(t, err)

	root, err := entry.FormatRootDirectory(vol, rootSector)
	require.NoError(t, err)

	require.NoError(t, vol.FlushBitmap())
	return vol, root
}

// NewDefaultVolume is NewVolume sized to DefaultTotalSectors, the size most
// unit tests want.
func NewDefaultVolume(t *testing.T) (*volume.Volume, *entry.Directory) {
	t.Helper()
	return NewVolume(t, DefaultTotalSectors)
}
