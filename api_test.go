package redseafs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	rs "github.com/puckipedia/RedSeaFS"
)

func TestTimestampDaysAndTicksRoundTrip(t *testing.T) {
	ts := rs.NewTimestamp(730, 24855)
	assert.Equal(t, uint32(730), ts.Days())
	assert.Equal(t, uint32(24855), ts.Ticks())
}

func TestFileStatIsDirIsFile(t *testing.T) {
	dir := rs.FileStat{Mode: rs.S_IFDIR}
	assert.True(t, dir.IsDir())
	assert.False(t, dir.IsFile())

	file := rs.FileStat{Mode: rs.S_IFREG}
	assert.False(t, file.IsDir())
	assert.True(t, file.IsFile())
}
