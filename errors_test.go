package redseafs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	rs "github.com/puckipedia/RedSeaFS"
)

func TestErrnoWithMessage(t *testing.T) {
	newErr := rs.ErrNotFound.WithMessage("greeting.txt")
	assert.Equal(t, "no such file or directory: greeting.txt", newErr.Error())
	assert.ErrorIs(t, newErr, rs.ErrNotFound)
}

func TestErrnoWrap(t *testing.T) {
	original := errors.New("short read")
	newErr := rs.ErrIO.Wrap(original)

	assert.Equal(t, "input/output error: short read", newErr.Error())
	assert.ErrorIs(t, newErr, original)
	assert.ErrorIs(t, newErr, rs.ErrIO)
}

func TestErrnoWithMessageChaining(t *testing.T) {
	newErr := rs.ErrNoSpace.WithMessage("allocating 4 sectors").WithMessage("growing file")
	assert.ErrorIs(t, newErr, rs.ErrNoSpace)
	assert.Contains(t, newErr.Error(), "allocating 4 sectors")
	assert.Contains(t, newErr.Error(), "growing file")
}
