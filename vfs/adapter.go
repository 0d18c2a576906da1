// Package vfs is the boundary between the RedSea volume engine and a host
// kernel's virtual filesystem layer: it maintains inode identity across
// concurrent callbacks and translates vnode-style calls into entry/directory
// operations (spec §4.7).
package vfs

import (
	"log"
	"sync"

	"github.com/hashicorp/go-multierror"

	rs "github.com/puckipedia/RedSeaFS"
	"github.com/puckipedia/RedSeaFS/entry"
	"github.com/puckipedia/RedSeaFS/volume"
)

// node is the adapter's private bookkeeping for one live inode: the entry
// object the kernel is holding a reference to, its directory view if it is a
// directory, and a count of outstanding references.
type node struct {
	ent  *entry.Entry
	dir  *entry.Directory // non-nil only when ent.IsDirectory()
	refs int
}

// Adapter is the single entry point a kernel uses to mount, traverse, and
// mutate a RedSea volume. It owns the inode table and the per-volume mount
// state; all exported methods are safe for concurrent use.
type Adapter struct {
	mu        sync.Mutex
	vol       *volume.Volume
	nodes     map[uint64]*node
	flags     rs.MountFlags
	rootInode uint64

	// Logger, if set, receives a line from Mount, Create and Rename; the
	// other callbacks do not log. Nil disables logging entirely; no level
	// filtering is implemented.
	Logger *log.Logger
}

// NewAdapter constructs an unmounted adapter. Call Mount before issuing any
// other callback.
func NewAdapter() *Adapter {
	return &Adapter{nodes: make(map[uint64]*node)}
}

func (a *Adapter) logf(format string, args ...any) {
	if a.Logger != nil {
		a.Logger.Printf(format, args...)
	}
}

// Mount opens the volume over device and publishes its root directory,
// returning the root's inode number.
func (a *Adapter) Mount(device *volume.Device, flags rs.MountFlags) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	vol, err := volume.Mount(device)
	if err != nil {
		return 0, err
	}

	rootSector := vol.Boot.RootSector() - vol.Boot.BaseOffset()
	rootEnt, err := entry.ReadEntry(vol, sectorByteOffset(rootSector), nil)
	if err != nil {
		return 0, err
	}
	rootDir, err := entry.OpenDirectory(vol, rootEnt)
	if err != nil {
		return 0, err
	}

	a.vol = vol
	a.flags = flags
	a.nodes = map[uint64]*node{rootSector: {ent: rootEnt, dir: rootDir, refs: 1}}
	a.rootInode = rootSector
	a.logf("mounted volume, root inode %d", rootSector)
	return rootSector, nil
}

// RootInode returns the inode number published for the volume's root
// directory by the most recent Mount call.
func (a *Adapter) RootInode() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rootInode
}

func sectorByteOffset(sector uint64) uint64 { return sector * volume.SectorSize }

// Unmount flushes the bitmap and drops the volume handle. The kernel is
// responsible for flushing outstanding vnodes (dirty entries) first; Unmount
// aggregates any errors flushing entries still held open at the moment it is
// called.
func (a *Adapter) Unmount() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var result *multierror.Error
	for _, n := range a.nodes {
		if err := n.ent.Flush(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := a.vol.FlushBitmap(); err != nil {
		result = multierror.Append(result, err)
	}

	a.vol = nil
	a.nodes = nil
	return result.ErrorOrNil()
}

// ReadFSInfo reports volume-wide statistics.
func (a *Adapter) ReadFSInfo() (rs.FSStat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.vol.Boot.TotalSectors()
	used := a.vol.Bitmap.UsedClusters()
	free := uint64(0)
	if total > used {
		free = total - used
	}

	return rs.FSStat{
		BlockSize:   volume.SectorSize,
		IOSize:      volume.SectorSize,
		TotalBlocks: total,
		FreeBlocks:  free,
		VolumeName:  "RedSea Volume",
		FSName:      "RedSeaFS",
	}, nil
}

// get resolves inode to its node, incrementing its reference count. If the
// table has evicted it, it is reconstructed by re-reading the entry at its
// volume-relative first sector (inode == first sector, spec §4.7) and
// republishing it, so a kernel can hand back an inode number after the
// adapter's own cache has dropped it. The caller must hold a.mu.
func (a *Adapter) get(inode uint64) (*node, error) {
	if n, ok := a.nodes[inode]; ok {
		n.refs++
		return n, nil
	}

	ent, err := entry.ReadEntry(a.vol, sectorByteOffset(inode), nil)
	if err != nil {
		return nil, err
	}
	if !ent.Record().IsLive() {
		return nil, rs.ErrNotFound
	}

	_, n := a.publish(ent)
	return n, nil
}

// lookupNode returns the node for inode, incrementing its reference count.
// The caller must hold a.mu.
func (a *Adapter) lookupNode(inode uint64) (*node, error) {
	return a.get(inode)
}

// dirNodeLocked resolves inode to its node, requiring it to be a directory.
// The caller must hold a.mu.
func (a *Adapter) dirNodeLocked(inode uint64) (*node, error) {
	n, err := a.get(inode)
	if err != nil {
		return nil, err
	}
	if n.dir == nil {
		a.putLocked(inode)
		return nil, rs.ErrNotADirectory
	}
	return n, nil
}

// publish registers a freshly created entry under its own inode, or bumps
// the reference count if another reference already exists for that inode
// (spec §4.7: directory self-slots and parent back-references share a
// target's first sector, so the same inode can be reached multiple ways).
func (a *Adapter) publish(ent *entry.Entry) (uint64, *node) {
	inode := ent.FirstSector()
	if existing, ok := a.nodes[inode]; ok {
		existing.refs++
		return inode, existing
	}
	n := &node{ent: ent, refs: 1}
	if ent.IsDirectory() {
		if dir, err := entry.OpenDirectory(a.vol, ent); err == nil {
			n.dir = dir
			n.ent = dir.Self()
		}
	}
	a.nodes[inode] = n
	return inode, n
}

// putLocked is Put's body, for callers that already hold a.mu.
func (a *Adapter) putLocked(inode uint64) {
	n, ok := a.nodes[inode]
	if !ok {
		return
	}
	n.refs--
	if n.refs <= 0 {
		delete(a.nodes, inode)
	}
}

// Put releases one reference to inode; when the last reference drops the
// node is evicted from the table.
func (a *Adapter) Put(inode uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.putLocked(inode)
}

// removeLocked forcibly evicts inode regardless of outstanding references,
// signalling to the kernel that it must drop its own reference too. Must be
// called with a.mu held.
func (a *Adapter) removeLocked(inode uint64) {
	delete(a.nodes, inode)
}

// Lookup resolves name within dirInode's children, returning its inode.
// "." resolves to the directory itself.
func (a *Adapter) Lookup(dirInode uint64, name string) (uint64, error) {
	a.mu.Lock()
	dn, err := a.dirNodeLocked(dirInode)
	a.mu.Unlock()
	if err != nil {
		return 0, err
	}
	defer a.Put(dirInode)

	dn.ent.ReadLock.Lock()
	defer dn.ent.ReadLock.Unlock()

	if name == "." {
		return dirInode, nil
	}

	child, err := dn.dir.Lookup(name)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	inode, _ := a.publish(child)
	a.mu.Unlock()
	return inode, nil
}

// GetVnodeName returns inode's own name, as recorded in its directory slot.
func (a *Adapter) GetVnodeName(inode uint64) (string, error) {
	a.mu.Lock()
	n, err := a.lookupNode(inode)
	a.mu.Unlock()
	if err != nil {
		return "", err
	}
	defer a.Put(inode)

	n.ent.ReadLock.Lock()
	defer n.ent.ReadLock.Unlock()
	return n.ent.Name(), nil
}

// ReadStat fills in a platform-independent stat structure for inode.
func (a *Adapter) ReadStat(inode uint64) (rs.FileStat, error) {
	a.mu.Lock()
	n, err := a.lookupNode(inode)
	a.mu.Unlock()
	if err != nil {
		return rs.FileStat{}, err
	}
	defer a.Put(inode)

	n.ent.ReadLock.Lock()
	defer n.ent.ReadLock.Unlock()

	mode := uint32(rs.DefaultFilePerms)
	if n.ent.IsDirectory() {
		mode |= rs.S_IFDIR
	} else {
		mode |= rs.S_IFREG
	}

	size := n.ent.Size()
	return rs.FileStat{
		InodeNumber: inode,
		Mode:        mode,
		Size:        size,
		BlockSize:   volume.SectorSize,
		Blocks:      volume.SectorsFor(size),
		Nlink:       0,
		Uid:         0,
		Gid:         0,
	}, nil
}

// WriteStat applies the fields selected by mask; presently only a size
// change (truncate/extend) is supported, as the on-disk record carries no
// other settable attribute.
func (a *Adapter) WriteStat(inode uint64, stat rs.FileStat, sizeMask bool) error {
	if !sizeMask {
		return nil
	}
	if !a.flags.CanWrite() {
		return rs.ErrReadOnlyFileSystem
	}

	a.mu.Lock()
	n, err := a.lookupNode(inode)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	defer a.Put(inode)

	n.ent.ReadLock.Lock()
	n.ent.WriteLock.Lock()
	defer n.ent.WriteLock.Unlock()
	defer n.ent.ReadLock.Unlock()

	if rerr := n.ent.Resize(stat.Size); rerr != nil {
		return rerr
	}
	if err := n.ent.Flush(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vol.FlushBitmap()
}

// Create makes a new, empty regular file named name inside dirInode and
// opens it per openmode.
func (a *Adapter) Create(dirInode uint64, name string, openmode rs.IOFlags) (uint64, *FileCookie, error) {
	if !a.flags.CanInsert() {
		return 0, nil, rs.ErrReadOnlyFileSystem
	}

	a.mu.Lock()
	dn, err := a.dirNodeLocked(dirInode)
	a.mu.Unlock()
	if err != nil {
		return 0, nil, err
	}
	defer a.Put(dirInode)

	dn.ent.WriteLock.Lock()
	defer dn.ent.WriteLock.Unlock()

	if _, err := dn.dir.Lookup(name); err == nil {
		return 0, nil, rs.ErrExists
	}

	child, cerr := dn.dir.CreateFile(name, 0)
	if cerr != nil {
		return 0, nil, cerr
	}

	a.mu.Lock()
	if err := a.vol.FlushBitmap(); err != nil {
		a.mu.Unlock()
		return 0, nil, err
	}
	inode, n := a.publish(child)
	a.mu.Unlock()

	a.logf("create %s in inode %d -> inode %d", name, dirInode, inode)
	return inode, &FileCookie{inode: inode, openMode: openmode, file: entry.AsFile(n.ent)}, nil
}

// Open opens an existing inode for I/O under openmode, truncating it first
// if O_TRUNC is set.
func (a *Adapter) Open(inode uint64, openmode rs.IOFlags) (*FileCookie, error) {
	a.mu.Lock()
	n, err := a.lookupNode(inode)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if openmode.Truncate() {
		if !a.flags.CanWrite() {
			a.Put(inode)
			return nil, rs.ErrReadOnlyFileSystem
		}
		n.ent.ReadLock.Lock()
		n.ent.WriteLock.Lock()
		rerr := n.ent.Resize(0)
		var flushErr error
		if rerr == nil {
			flushErr = n.ent.Flush()
		}
		n.ent.WriteLock.Unlock()
		n.ent.ReadLock.Unlock()
		if rerr != nil {
			a.Put(inode)
			return nil, rerr
		}
		if flushErr != nil {
			a.Put(inode)
			return nil, flushErr
		}
	}

	return &FileCookie{inode: inode, openMode: openmode, file: entry.AsFile(n.ent)}, nil
}

// CloseFile releases the reference Open/Create acquired for cookie's inode.
func (a *Adapter) CloseFile(cookie *FileCookie) {
	a.Put(cookie.inode)
}

// Read services a read callback against an open file cookie.
func (a *Adapter) Read(cookie *FileCookie, pos uint64, buf []byte) (int, error) {
	if !cookie.Readable() {
		return 0, rs.ErrNotPermitted
	}

	cookie.file.ReadLock.Lock()
	defer cookie.file.ReadLock.Unlock()
	n, err := cookie.file.Read(pos, buf)
	if err != nil {
		return n, err
	}
	return n, nil
}

// Write services a write callback, resizing the file first if the write
// extends past its current size.
func (a *Adapter) Write(cookie *FileCookie, pos uint64, buf []byte) (int, error) {
	if !cookie.Writable() {
		return 0, rs.ErrNotPermitted
	}
	if !a.flags.CanWrite() {
		return 0, rs.ErrReadOnlyFileSystem
	}

	f := cookie.file
	f.ReadLock.Lock()
	needed := pos + uint64(len(buf))
	grow := needed > f.Size()
	f.ReadLock.Unlock()

	if grow {
		f.ReadLock.Lock()
		f.WriteLock.Lock()
		rerr := f.Resize(needed)
		f.WriteLock.Unlock()
		f.ReadLock.Unlock()
		if rerr != nil {
			return 0, rerr
		}

		a.mu.Lock()
		flushErr := a.vol.FlushBitmap()
		a.mu.Unlock()
		if flushErr != nil {
			return 0, flushErr
		}
	}

	f.WriteLock.Lock()
	defer f.WriteLock.Unlock()
	n, err := f.Write(pos, buf)
	if err != nil {
		return n, err
	}
	if err := f.Flush(); err != nil {
		return n, err
	}
	return n, nil
}

// Unlink removes a name from a directory, freeing the underlying entry's
// storage.
func (a *Adapter) Unlink(dirInode uint64, name string) error {
	if !a.flags.CanDelete() {
		return rs.ErrReadOnlyFileSystem
	}

	a.mu.Lock()
	dn, err := a.dirNodeLocked(dirInode)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	defer a.Put(dirInode)

	dn.ent.WriteLock.Lock()
	defer dn.ent.WriteLock.Unlock()

	child, err := dn.dir.Lookup(name)
	if err != nil {
		return err
	}
	if child.IsDirectory() {
		return rs.ErrIsADirectory
	}

	child.ReadLock.Lock()
	child.WriteLock.Lock()
	child.Delete()
	ferr := child.Flush()
	child.WriteLock.Unlock()
	child.ReadLock.Unlock()
	if ferr != nil {
		return ferr
	}

	a.mu.Lock()
	a.removeLocked(child.FirstSector())
	flushErr := a.vol.FlushBitmap()
	a.mu.Unlock()
	return flushErr
}

// CreateDir creates a new 16-slot subdirectory named name inside dirInode.
func (a *Adapter) CreateDir(dirInode uint64, name string) (uint64, error) {
	if !a.flags.CanInsert() {
		return 0, rs.ErrReadOnlyFileSystem
	}

	a.mu.Lock()
	dn, err := a.dirNodeLocked(dirInode)
	a.mu.Unlock()
	if err != nil {
		return 0, err
	}
	defer a.Put(dirInode)

	dn.ent.WriteLock.Lock()
	defer dn.ent.WriteLock.Unlock()

	if _, err := dn.dir.Lookup(name); err == nil {
		return 0, rs.ErrExists
	}

	child, cerr := dn.dir.CreateDirectory(name, 16)
	if cerr != nil {
		return 0, cerr
	}

	a.mu.Lock()
	if err := a.vol.FlushBitmap(); err != nil {
		a.mu.Unlock()
		return 0, err
	}
	inode := child.Self().FirstSector()
	a.nodes[inode] = &node{ent: child.Self(), dir: child, refs: 1}
	a.mu.Unlock()
	return inode, nil
}

// RemoveDir removes a subdirectory. No emptiness check is enforced (spec §9
// Open Question 5 leaves this to the implementer; RedSeaFS does not add
// one).
func (a *Adapter) RemoveDir(dirInode uint64, name string) error {
	if !a.flags.CanDelete() {
		return rs.ErrReadOnlyFileSystem
	}

	a.mu.Lock()
	dn, err := a.dirNodeLocked(dirInode)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	defer a.Put(dirInode)

	dn.ent.WriteLock.Lock()
	defer dn.ent.WriteLock.Unlock()

	child, err := dn.dir.Lookup(name)
	if err != nil {
		return err
	}
	if !child.IsDirectory() {
		return rs.ErrNotADirectory
	}

	child.ReadLock.Lock()
	child.WriteLock.Lock()
	child.Delete()
	ferr := child.Flush()
	child.WriteLock.Unlock()
	child.ReadLock.Unlock()
	if ferr != nil {
		return ferr
	}

	a.mu.Lock()
	a.removeLocked(child.FirstSector())
	flushErr := a.vol.FlushBitmap()
	a.mu.Unlock()
	return flushErr
}

// Rename moves (and, unlike the engine this was ported from, renames) an
// entry from one directory slot to another. Both directories are locked in
// ascending-inode order to prevent deadlock against a concurrent reverse
// rename (spec §5, Open Question 6).
func (a *Adapter) Rename(fromDirInode uint64, fromName string, toDirInode uint64, toName string) error {
	if !a.flags.CanInsert() || !a.flags.CanDelete() {
		return rs.ErrReadOnlyFileSystem
	}

	a.mu.Lock()
	fromDn, err := a.dirNodeLocked(fromDirInode)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	toDn, err := a.dirNodeLocked(toDirInode)
	a.mu.Unlock()
	if err != nil {
		a.Put(fromDirInode)
		return err
	}
	defer a.Put(fromDirInode)
	defer a.Put(toDirInode)

	if fromDirInode == toDirInode {
		fromDn.ent.WriteLock.Lock()
		defer fromDn.ent.WriteLock.Unlock()
		return a.renameWithinLocked(fromDn, fromName, toName)
	}

	first, second := fromDn, toDn
	if toDirInode < fromDirInode {
		first, second = toDn, fromDn
	}
	first.ent.WriteLock.Lock()
	defer first.ent.WriteLock.Unlock()
	second.ent.WriteLock.Lock()
	defer second.ent.WriteLock.Unlock()

	return a.renameAcrossLocked(fromDn, fromName, toDn, toName)
}

func (a *Adapter) renameWithinLocked(dn *node, fromName, toName string) error {
	child, err := dn.dir.Lookup(fromName)
	if err != nil {
		return err
	}

	if err := dn.dir.RemoveEntry(child); err != nil {
		return err
	}
	// RemoveEntry tombstoned child's record; clear that before re-adding it.
	rec := child.Record()
	rec.SetAttributes(rec.Attributes() &^ rs.AttrDeleted)
	rec.SetName(toName)
	newChild, cerr := addExistingEntry(dn.dir, child)
	if cerr != nil {
		return cerr
	}

	a.mu.Lock()
	a.removeLocked(child.FirstSector())
	inode, _ := a.publish(newChild)
	a.mu.Unlock()

	a.logf("rename %s -> %s within inode %d (new inode %d)", fromName, toName, dn.ent.FirstSector(), inode)
	return nil
}

func (a *Adapter) renameAcrossLocked(fromDn *node, fromName string, toDn *node, toName string) error {
	child, err := fromDn.dir.Lookup(fromName)
	if err != nil {
		return err
	}

	child.Record().SetName(toName)
	added, aerr := addExistingEntry(toDn.dir, child)
	if aerr != nil {
		// Leave the source untouched on failure (spec §7).
		child.Record().SetName(fromName)
		return aerr
	}

	if err := fromDn.dir.RemoveEntry(child); err != nil {
		return err
	}

	a.mu.Lock()
	a.removeLocked(child.FirstSector())
	inode, _ := a.publish(added)
	a.mu.Unlock()

	a.logf("rename %s (inode %d) from inode %d to inode %d as %s", fromName, inode, fromDn.ent.FirstSector(), toDn.ent.FirstSector(), toName)
	return nil
}

// OpenDir opens a directory cursor over inode.
func (a *Adapter) OpenDir(inode uint64) (*DirCookie, error) {
	a.mu.Lock()
	_, err := a.dirNodeLocked(inode)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &DirCookie{inode: inode}, nil
}

// CloseDir releases the reference OpenDir acquired.
func (a *Adapter) CloseDir(cookie *DirCookie) {
	a.Put(cookie.inode)
}

// ReadDir returns the next live child's name and inode, or ok=false when the
// cursor is exhausted.
func (a *Adapter) ReadDir(cookie *DirCookie) (name string, inode uint64, ok bool, err error) {
	a.mu.Lock()
	dn, derr := a.dirNodeLocked(cookie.inode)
	a.mu.Unlock()
	if derr != nil {
		return "", 0, false, derr
	}
	defer a.Put(cookie.inode)

	dn.ent.ReadLock.Lock()
	child, gerr := dn.dir.GetEntry(cookie.index)
	dn.ent.ReadLock.Unlock()
	if gerr != nil {
		if gerr == rs.ErrNotFound {
			return "", 0, false, nil
		}
		return "", 0, false, gerr
	}
	cookie.index++

	a.mu.Lock()
	childInode, _ := a.publish(child)
	a.mu.Unlock()
	return child.Name(), childInode, true, nil
}

// RewindDir resets a directory cursor to the first live child.
func (a *Adapter) RewindDir(cookie *DirCookie) error {
	cookie.index = 0
	return nil
}

// addExistingEntry places an already-allocated entry's record into the
// lowest free slot of dir, without touching the bitmap: used by rename,
// which relocates a slot but not the underlying sectors.
func addExistingEntry(dir *entry.Directory, child *entry.Entry) (*entry.Entry, error) {
	return dir.AdoptEntry(child.Record())
}
