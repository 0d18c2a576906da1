package entry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rs "github.com/puckipedia/RedSeaFS"
	"github.com/puckipedia/RedSeaFS/entry"
	"github.com/puckipedia/RedSeaFS/redseatest"
	"github.com/puckipedia/RedSeaFS/volume"
)

func TestRootDirectorySelfAndParentSlots(t *testing.T) {
	vol, root := redseatest.NewDefaultVolume(t)

	self := root.Self()
	assert.Equal(t, ".", self.Name())
	assert.True(t, self.IsDirectory())

	parentSlotLocation := int64(self.FirstSector())*volume.SectorSize + 64
	parent, err := entry.ReadEntry(vol, uint64(parentSlotLocation), nil)
	require.NoError(t, err)
	assert.Equal(t, "..", parent.Name())
	assert.Equal(t, self.FirstSector(), parent.FirstSector(), "root's .. must point back at itself")
}

func TestCreateFileIsFindableByLookup(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)
	_, cerr := root.CreateFile("notes.txt", 64)
	require.Nil(t, cerr)

	found, err := root.Lookup("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", found.Name())
	assert.False(t, found.IsDirectory())
}

func TestLookupMissingNameFails(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)
	_, err := root.Lookup("nope.txt")
	assert.ErrorIs(t, err, rs.ErrNotFound)
}

func TestCreateDirectoryNestsAndLinksParent(t *testing.T) {
	vol, root := redseatest.NewDefaultVolume(t)
	sub, cerr := root.CreateDirectory("sub", 4)
	require.Nil(t, cerr)
	assert.Equal(t, "sub", sub.Self().Name())

	found, lerr := root.Lookup("sub")
	require.NoError(t, lerr)
	assert.True(t, found.IsDirectory())
	assert.Equal(t, sub.Self().FirstSector(), found.FirstSector())

	parentSlotLocation := int64(sub.Self().FirstSector())*volume.SectorSize + 64
	parentRef, err := entry.ReadEntry(vol, uint64(parentSlotLocation), nil)
	require.NoError(t, err)
	assert.Equal(t, "..", parentRef.Name())
	assert.Equal(t, root.Self().FirstSector(), parentRef.FirstSector())
}

func TestCountEntriesExcludesSelfAndParentSlots(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)
	assert.Equal(t, 0, root.CountEntries())

	_, cerr := root.CreateFile("a.txt", 1)
	require.Nil(t, cerr)
	_, cerr = root.CreateFile("b.txt", 1)
	require.Nil(t, cerr)
	assert.Equal(t, 2, root.CountEntries())
}

func TestRemoveEntryTombstonesSlotWithoutFreeingStorage(t *testing.T) {
	vol, root := redseatest.NewDefaultVolume(t)
	child, cerr := root.CreateFile("a.txt", 512)
	require.Nil(t, cerr)

	firstSector := child.FirstSector()
	require.NoError(t, root.RemoveEntry(child))

	_, err := root.Lookup("a.txt")
	assert.ErrorIs(t, err, rs.ErrNotFound)
	assert.False(t, vol.Bitmap.IsFree(firstSector), "RemoveEntry must not deallocate storage on its own")
}

func TestCreateFileReusesTombstonedSlot(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)
	before := root.CountEntries()

	first, cerr := root.CreateFile("first.txt", 1)
	require.Nil(t, cerr)
	require.NoError(t, root.RemoveEntry(first))

	second, cerr := root.CreateFile("second.txt", 1)
	require.Nil(t, cerr)
	assert.Equal(t, first.EntryLocation(), second.EntryLocation(), "the tombstoned slot must be reused")
	assert.Equal(t, before+1, root.CountEntries())
}

func TestCreateFileGrowsDirectoryWhenFull(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)

	slotsPerSector := 512 / 64
	// Root starts with one sector of slots (slot 0 and 1 reserved), so it
	// takes slotsPerSector-2 files to fill the rest before a grow is forced.
	// The files are empty, so they claim no sectors and the sector right
	// after the root stays free: a directory grows only in place.
	for i := 0; i < slotsPerSector-2; i++ {
		_, cerr := root.CreateFile(string(rune('a'+i))+".txt", 0)
		require.Nil(t, cerr)
	}
	assert.Equal(t, slotsPerSector-2, root.CountEntries())

	_, cerr := root.CreateFile("overflow.txt", 0)
	require.Nil(t, cerr)
	assert.Equal(t, slotsPerSector-1, root.CountEntries())
}
