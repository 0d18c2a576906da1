package entry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rs "github.com/puckipedia/RedSeaFS"
	"github.com/puckipedia/RedSeaFS/entry"
	"github.com/puckipedia/RedSeaFS/redseatest"
)

func TestFileWriteThenReadRoundTrip(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)
	ent, cerr := root.CreateFile("data.bin", 512)
	require.Nil(t, cerr)

	f := entry.AsFile(ent)
	payload := []byte("the quick brown fox jumps over the lazy dog")

	n, werr := f.Write(0, payload)
	require.Nil(t, werr)
	assert.Equal(t, len(payload), n)

	readBack := make([]byte, len(payload))
	n, rerr := f.Read(0, readBack)
	require.Nil(t, rerr)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, readBack)
}

func TestFileReadPastEndOfFileIsTruncated(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)
	ent, cerr := root.CreateFile("data.bin", 16)
	require.Nil(t, cerr)

	f := entry.AsFile(ent)
	buf := make([]byte, 64)
	n, rerr := f.Read(10, buf)
	require.Nil(t, rerr)
	assert.Equal(t, 6, n, "read must be clamped to the file's remaining size")
}

func TestFileReadOffsetPastEndIsAnError(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)
	ent, cerr := root.CreateFile("data.bin", 16)
	require.Nil(t, cerr)

	f := entry.AsFile(ent)
	_, rerr := f.Read(100, make([]byte, 1))
	require.NotNil(t, rerr)
	assert.ErrorIs(t, rerr, rs.ErrInvalidArgument)
}

func TestFileWriteOffsetPastEndIsAnError(t *testing.T) {
	_, root := redseatest.NewDefaultVolume(t)
	ent, cerr := root.CreateFile("data.bin", 16)
	require.Nil(t, cerr)

	f := entry.AsFile(ent)
	_, werr := f.Write(100, []byte("x"))
	require.NotNil(t, werr)
	assert.ErrorIs(t, werr, rs.ErrInvalidArgument)
}
