package lintserver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
)

func TestNormalizeURI(t *testing.T) {
	assert.EqualValues(t, "file:///dir/a.proto", normalizeURI(defines.DocumentUri("file:/dir/a.proto")))
	assert.EqualValues(t, "file:///dir/a.proto", normalizeURI(defines.DocumentUri("file:///dir/a.proto")))
	assert.EqualValues(t, "not a uri", normalizeURI(defines.DocumentUri("not a uri")))
}

func TestGetProtoFilePath(t *testing.T) {
	path, err := getProtoFilePath("file:///dir/a.proto")
	if assert.NoError(t, err) {
		assert.Equal(t, "/dir/a.proto", path)
	}

	path, err = getProtoFilePath("file:/dir/sub/../a.proto")
	if assert.NoError(t, err) {
		assert.Equal(t, "/dir/a.proto", path)
	}

	_, err = getProtoFilePath("file:///dir/a.txt")
	assert.Error(t, err)

	_, err = getProtoFilePath("untitled:Untitled-1")
	assert.ErrorIs(t, err, ErrFileURIExpected)
}

func TestFileURI(t *testing.T) {
	uri, err := FileURI("/dir/a.proto")
	if assert.NoError(t, err) {
		assert.EqualValues(t, "file:///dir/a.proto", uri)
	}

	_, err = FileURI("relative/a.proto")
	assert.Error(t, err)

	_, err = FileURI("")
	assert.Error(t, err)
}
