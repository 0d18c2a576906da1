package redseafs

import "time"

// FileStat is a platform-independent form of a POSIX stat structure, filled
// in by [redseafs/vfs.Adapter.ReadStat].
type FileStat struct {
	InodeNumber uint64
	Mode        uint32
	Size        uint64
	BlockSize   uint32
	Blocks      uint64
	Nlink       uint32
	Uid         uint32
	Gid         uint32
}

func (stat *FileStat) IsDir() bool  { return stat.Mode&S_IFDIR != 0 }
func (stat *FileStat) IsFile() bool { return stat.Mode&S_IFREG != 0 }

// FSStat is the platform-independent form of the information a statfs(2)
// call needs; it is what [redseafs/vfs.Adapter.ReadFSInfo] returns.
type FSStat struct {
	BlockSize   uint32
	IOSize      uint32
	TotalBlocks uint64
	FreeBlocks  uint64
	Flags       uint32
	VolumeName  string
	FSName      string
}

// Timestamp decodes a RedSea on-disk date-time: the high 32 bits are days
// since year 1, the low 32 bits are ticks at 49,710 Hz within the day.
type Timestamp uint64

const TicksPerSecond = 49710

func NewTimestamp(daysSinceYear1, ticks uint32) Timestamp {
	return Timestamp(uint64(daysSinceYear1)<<32 | uint64(ticks))
}

func (t Timestamp) Days() uint32  { return uint32(t >> 32) }
func (t Timestamp) Ticks() uint32 { return uint32(t & 0xFFFFFFFF) }

// Time approximates the timestamp as a [time.Time], treating day 0 as the
// start of the proleptic Gregorian year 1. RedSea performs no timezone or
// calendar normalization beyond this; see spec Non-goals.
func (t Timestamp) Time() time.Time {
	epoch := time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	secondsInDay := float64(t.Ticks()) / float64(TicksPerSecond)
	return epoch.
		AddDate(0, 0, int(t.Days())).
		Add(time.Duration(secondsInDay * float64(time.Second)))
}
