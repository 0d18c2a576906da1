// Package redseafs defines the platform-independent types shared by every
// layer of the RedSea file system driver: error codes, on-disk attribute
// bits, mount/open flags, and the stat structures handed back to a caller.
//
// Subpackages implement the actual volume engine:
//
//   - redseafs/volume: block I/O, the boot record, and the allocation bitmap.
//   - redseafs/entry: directory entries, files, and directories.
//   - redseafs/vfs: the VFS adapter that a kernel (or the redseafsutil CLI)
//     drives.
package redseafs
