// Command redseafsutil is a host-side maintenance tool for RedSea volumes,
// built directly on the same vfs.Adapter a kernel would mount through.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/xaionaro-go/bytesextra"

	rs "github.com/puckipedia/RedSeaFS"
	"github.com/puckipedia/RedSeaFS/entry"
	"github.com/puckipedia/RedSeaFS/media"
	"github.com/puckipedia/RedSeaFS/vfs"
	"github.com/puckipedia/RedSeaFS/volume"
)

func main() {
	app := &cli.App{
		Name:  "redseafsutil",
		Usage: "inspect and format RedSea volumes from outside a kernel",
		Commands: []*cli.Command{
			mkfsCommand,
			lsCommand,
			catCommand,
			statCommand,
			mkdirCommand,
			rmCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("redseafsutil: %s", err)
	}
}

var mkfsCommand = &cli.Command{
	Name:      "mkfs",
	Usage:     "format a new RedSea image",
	ArgsUsage: "IMAGE_PATH",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "geometry", Usage: "predefined media slug, e.g. 3.5-inch-hd"},
		&cli.Uint64Flag{Name: "sectors", Usage: "total sectors, if --geometry is not given"},
		&cli.Uint64Flag{Name: "bitmap-sectors", Value: 4, Usage: "sectors reserved for the allocation bitmap"},
	},
	Action: runMkfs,
}

func runMkfs(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("mkfs requires an IMAGE_PATH argument", 1)
	}

	totalSectors := c.Uint64("sectors")
	if slug := c.String("geometry"); slug != "" {
		geometry, err := media.GetPredefinedGeometry(slug)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		totalSectors = geometry.TotalSectors()
	}
	if totalSectors == 0 {
		return cli.Exit("mkfs requires --sectors or --geometry", 1)
	}

	image, rootSector, err := volume.Format(totalSectors, c.Uint64("bitmap-sectors"), 0, 1)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// The root directory's self/parent slots, and the bitmap bit reserving
	// them, are written in memory first; only the finished image touches the
	// output file.
	memDevice := volume.NewDevice(bytesextra.NewReadWriteSeeker(image))
	vol, err := volume.Mount(memDevice)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if _, err := entry.FormatRootDirectory(vol, rootSector); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := vol.FlushBitmap(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := os.WriteFile(path, image, 0o644); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("formatted %s: %d sectors, root at sector %d\n", path, totalSectors, rootSector)
	return nil
}

var lsCommand = &cli.Command{
	Name:      "ls",
	Usage:     "list a directory",
	ArgsUsage: "IMAGE_PATH [DIR_PATH]",
	Action:    runLs,
}

func runLs(c *cli.Context) error {
	adapter, err := openAdapter(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer adapter.Unmount()

	dirInode, err := resolveInode(adapter, dirArgOrRoot(c.Args().Get(1)))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cursor, err := adapter.OpenDir(dirInode)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer adapter.CloseDir(cursor)

	for {
		name, inode, ok, err := adapter.ReadDir(cursor)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if !ok {
			break
		}
		stat, err := adapter.ReadStat(inode)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		kind := "f"
		if stat.IsDir() {
			kind = "d"
		}
		fmt.Printf("%s  %8d  %s\n", kind, stat.Size, name)
	}
	return nil
}

var catCommand = &cli.Command{
	Name:      "cat",
	Usage:     "print a file's contents",
	ArgsUsage: "IMAGE_PATH FILE_PATH",
	Action:    runCat,
}

func runCat(c *cli.Context) error {
	adapter, err := openAdapter(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer adapter.Unmount()

	inode, err := resolveInode(adapter, c.Args().Get(1))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	stat, err := adapter.ReadStat(inode)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cookie, err := adapter.Open(inode, rs.O_RDONLY)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer adapter.CloseFile(cookie)

	buf := make([]byte, stat.Size)
	if _, err := adapter.Read(cookie, 0, buf); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	os.Stdout.Write(buf)
	return nil
}

var statCommand = &cli.Command{
	Name:      "stat",
	Usage:     "print an entry's metadata",
	ArgsUsage: "IMAGE_PATH PATH",
	Action:    runStat,
}

func runStat(c *cli.Context) error {
	adapter, err := openAdapter(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer adapter.Unmount()

	inode, err := resolveInode(adapter, c.Args().Get(1))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	stat, err := adapter.ReadStat(inode)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("inode:  %d\nsize:   %d\nblocks: %d\nmode:   %#o\n", stat.InodeNumber, stat.Size, stat.Blocks, stat.Mode)
	return nil
}

var mkdirCommand = &cli.Command{
	Name:      "mkdir",
	Usage:     "create a directory",
	ArgsUsage: "IMAGE_PATH DIR_PATH",
	Action:    runMkdir,
}

func runMkdir(c *cli.Context) error {
	adapter, err := openAdapter(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer adapter.Unmount()

	parentPath, name := splitPath(c.Args().Get(1))
	parentInode, err := resolveInode(adapter, parentPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if _, err := adapter.CreateDir(parentInode, name); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

var rmCommand = &cli.Command{
	Name:      "rm",
	Usage:     "remove a file",
	ArgsUsage: "IMAGE_PATH FILE_PATH",
	Action:    runRm,
}

func runRm(c *cli.Context) error {
	adapter, err := openAdapter(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer adapter.Unmount()

	parentPath, name := splitPath(c.Args().Get(1))
	parentInode, err := resolveInode(adapter, parentPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return adapter.Unlink(parentInode, name)
}

func openAdapter(path string) (*vfs.Adapter, error) {
	if path == "" {
		return nil, fmt.Errorf("an IMAGE_PATH argument is required")
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	adapter := vfs.NewAdapter()
	if _, err := adapter.Mount(volume.NewDevice(file), rs.MountFlagsAllowAll); err != nil {
		file.Close()
		return nil, err
	}
	return adapter, nil
}

// dirArgOrRoot defaults an optional directory-path CLI argument to "/", the
// mounted volume's root, when the user didn't give one.
func dirArgOrRoot(pathArg string) string {
	if pathArg == "" {
		return "/"
	}
	return pathArg
}

// resolveInode walks path component by component from the mounted root,
// looking up each name in turn via adapter.Lookup.
func resolveInode(adapter *vfs.Adapter, path string) (uint64, error) {
	inode := adapter.RootInode()
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		next, err := adapter.Lookup(inode, part)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		inode = next
	}
	return inode, nil
}

// splitPath separates path into its parent directory and base name, the way
// the mkdir and rm commands need to locate the entry's containing directory
// before mutating it.
func splitPath(path string) (parentPath, name string) {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "/", trimmed
	}
	parentPath = trimmed[:idx]
	if parentPath == "" {
		parentPath = "/"
	}
	return parentPath, trimmed[idx+1:]
}
