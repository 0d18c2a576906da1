package vfs

import (
	rs "github.com/puckipedia/RedSeaFS"
	"github.com/puckipedia/RedSeaFS/entry"
)

// FileCookie is the open-file handle a kernel holds across a sequence of
// read/write calls to one inode (spec §4.7).
type FileCookie struct {
	inode      uint64
	openMode   rs.IOFlags
	file       *entry.File
}

func (c *FileCookie) Readable() bool { return c.openMode.Readable() }
func (c *FileCookie) Writable() bool { return c.openMode.Writable() }

// DirCookie is a directory read cursor: a monotonic live-child index, reset
// by RewindDir.
type DirCookie struct {
	inode uint64
	index int
}
