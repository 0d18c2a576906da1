package vfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	rs "github.com/puckipedia/RedSeaFS"
	"github.com/puckipedia/RedSeaFS/entry"
	"github.com/puckipedia/RedSeaFS/vfs"
	"github.com/puckipedia/RedSeaFS/volume"
)

func newMountedAdapter(t *testing.T) (*vfs.Adapter, uint64) {
	t.Helper()

	image, rootSector, err := volume.Format(256, 1, 0, 1)
	require.NoError(t, err)

	memDevice := volume.NewDevice(bytesextra.NewReadWriteSeeker(image))
	vol, err := volume.Mount(memDevice)
	require.NoError(t, err)

	root, err := entry.FormatRootDirectory(vol, rootSector)
	require.NoError(t, err)
	_ = root
	require.NoError(t, vol.FlushBitmap())

	adapter := vfs.NewAdapter()
	device := volume.NewDevice(bytesextra.NewReadWriteSeeker(image))
	inode, err := adapter.Mount(device, rs.MountFlagsAllowAll)
	require.NoError(t, err)
	return adapter, inode
}

func TestAdapterMountPublishesRootInode(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)
	assert.Equal(t, rootInode, adapter.RootInode())

	stat, err := adapter.ReadStat(rootInode)
	require.NoError(t, err)
	assert.True(t, stat.IsDir())
}

func TestAdapterCreateLookupReadWriteUnlink(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)

	inode, cookie, err := adapter.Create(rootInode, "greeting.txt", rs.O_RDWR|rs.O_CREATE)
	require.NoError(t, err)

	payload := []byte("hello redsea")
	n, werr := adapter.Write(cookie, 0, payload)
	require.NoError(t, werr)
	assert.Equal(t, len(payload), n)
	adapter.CloseFile(cookie)

	found, lerr := adapter.Lookup(rootInode, "greeting.txt")
	require.NoError(t, lerr)
	assert.Equal(t, inode, found)

	readCookie, oerr := adapter.Open(found, rs.O_RDONLY)
	require.NoError(t, oerr)
	defer adapter.CloseFile(readCookie)

	buf := make([]byte, len(payload))
	n, rerr := adapter.Read(readCookie, 0, buf)
	require.NoError(t, rerr)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)

	require.NoError(t, adapter.Unlink(rootInode, "greeting.txt"))
	_, lerr = adapter.Lookup(rootInode, "greeting.txt")
	assert.ErrorIs(t, lerr, rs.ErrNotFound)
}

func TestAdapterCreateDuplicateNameFails(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)
	_, _, err := adapter.Create(rootInode, "dup.txt", rs.O_RDWR|rs.O_CREATE)
	require.NoError(t, err)

	_, _, err = adapter.Create(rootInode, "dup.txt", rs.O_RDWR|rs.O_CREATE)
	assert.ErrorIs(t, err, rs.ErrExists)
}

func TestAdapterMkdirAndReaddir(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)
	_, err := adapter.CreateDir(rootInode, "subdir")
	require.NoError(t, err)
	_, _, err2 := adapter.Create(rootInode, "file.txt", rs.O_RDWR|rs.O_CREATE)
	require.NoError(t, err2)

	cursor, err := adapter.OpenDir(rootInode)
	require.NoError(t, err)
	defer adapter.CloseDir(cursor)

	names := map[string]bool{}
	for {
		name, _, ok, derr := adapter.ReadDir(cursor)
		require.NoError(t, derr)
		if !ok {
			break
		}
		names[name] = true
	}
	assert.True(t, names["subdir"])
	assert.True(t, names["file.txt"])
}

func TestAdapterRemoveDir(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)
	subInode, err := adapter.CreateDir(rootInode, "subdir")
	require.NoError(t, err)
	_ = subInode

	require.NoError(t, adapter.RemoveDir(rootInode, "subdir"))
	_, lerr := adapter.Lookup(rootInode, "subdir")
	assert.ErrorIs(t, lerr, rs.ErrNotFound)
}

func TestAdapterUnlinkRefusesDirectory(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)
	_, err := adapter.CreateDir(rootInode, "subdir")
	require.NoError(t, err)

	uerr := adapter.Unlink(rootInode, "subdir")
	assert.ErrorIs(t, uerr, rs.ErrIsADirectory)
}

func TestAdapterRenameWithinSameDirectory(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)
	inode, _, err := adapter.Create(rootInode, "old.txt", rs.O_RDWR|rs.O_CREATE)
	require.NoError(t, err)

	require.NoError(t, adapter.Rename(rootInode, "old.txt", rootInode, "new.txt"))

	_, lerr := adapter.Lookup(rootInode, "old.txt")
	assert.ErrorIs(t, lerr, rs.ErrNotFound)

	found, lerr2 := adapter.Lookup(rootInode, "new.txt")
	require.NoError(t, lerr2)
	assert.Equal(t, inode, found)
}

func TestAdapterRenameAcrossDirectories(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)
	subInode, err := adapter.CreateDir(rootInode, "sub")
	require.NoError(t, err)

	_, _, cerr := adapter.Create(rootInode, "moveme.txt", rs.O_RDWR|rs.O_CREATE)
	require.NoError(t, cerr)

	require.NoError(t, adapter.Rename(rootInode, "moveme.txt", subInode, "moved.txt"))

	_, lerr := adapter.Lookup(rootInode, "moveme.txt")
	assert.ErrorIs(t, lerr, rs.ErrNotFound)

	_, lerr2 := adapter.Lookup(subInode, "moved.txt")
	assert.NoError(t, lerr2)
}

func TestAdapterUnlinkThenCreateReusesFreedSpace(t *testing.T) {
	adapter, rootInode := newMountedAdapter(t)
	payload := make([]byte, 100)

	_, aCookie, err := adapter.Create(rootInode, "A", rs.O_RDWR|rs.O_CREATE)
	require.NoError(t, err)
	_, werr := adapter.Write(aCookie, 0, payload)
	require.NoError(t, werr)
	adapter.CloseFile(aCookie)

	before, err := adapter.ReadFSInfo()
	require.NoError(t, err)

	require.NoError(t, adapter.Unlink(rootInode, "A"))

	_, bCookie, err := adapter.Create(rootInode, "B", rs.O_RDWR|rs.O_CREATE)
	require.NoError(t, err)
	_, werr = adapter.Write(bCookie, 0, payload)
	require.NoError(t, werr)
	adapter.CloseFile(bCookie)

	after, err := adapter.ReadFSInfo()
	require.NoError(t, err)
	assert.Equal(t, before.FreeBlocks, after.FreeBlocks, "reusing A's freed sectors for B must leave free_blocks unchanged")
}

func TestAdapterReadOnlyMountRejectsMutation(t *testing.T) {
	image, rootSector, err := volume.Format(256, 1, 0, 1)
	require.NoError(t, err)
	memDevice := volume.NewDevice(bytesextra.NewReadWriteSeeker(image))
	vol, err := volume.Mount(memDevice)
	require.NoError(t, err)
	_, err = entry.FormatRootDirectory(vol, rootSector)
	require.NoError(t, err)
	require.NoError(t, vol.FlushBitmap())

	adapter := vfs.NewAdapter()
	device := volume.NewDevice(bytesextra.NewReadWriteSeeker(image))
	rootInode, err := adapter.Mount(device, rs.MountFlagsAllowRead)
	require.NoError(t, err)

	_, _, cerr := adapter.Create(rootInode, "nope.txt", rs.O_RDWR|rs.O_CREATE)
	assert.ErrorIs(t, cerr, rs.ErrReadOnlyFileSystem)
}
