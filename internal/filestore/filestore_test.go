package filestore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathRejectsBadPaths(t *testing.T) {
	bad := []string{"", "/abs", "a/../b", "../x", "a/./../../etc"}
	for _, p := range bad {
		_, err := ValidatePath(p)
		assert.Error(t, err, "expected %q to be rejected", p)
	}
}

func TestValidatePathAcceptsGoodPaths(t *testing.T) {
	good := []string{"docs/api.md", "src/server.js"}
	for _, p := range good {
		cleaned, err := ValidatePath(p)
		assert.NoError(t, err)
		assert.Equal(t, p, cleaned)
	}
}

func TestPutStoresInlineBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	require.NoError(t, err)

	content := make([]byte, Threshold-1)
	res, err := fs.Put(content)
	require.NoError(t, err)
	assert.NotNil(t, res.InlineText)
	assert.Nil(t, res.Location)
	assert.Equal(t, int64(Threshold-1), res.Size)
}

func TestPutStoresInvalidUTF8OnDiskBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	require.NoError(t, err)

	content := []byte{0xff, 0xfe, 0xfd} // not valid UTF-8
	res, err := fs.Put(content)
	require.NoError(t, err)
	assert.Nil(t, res.InlineText)
	require.NotNil(t, res.Location)

	_, err = os.Stat(*res.Location)
	assert.NoError(t, err)
}

func TestPutStoresOnDiskAtThreshold(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	require.NoError(t, err)

	content := make([]byte, Threshold)
	res, err := fs.Put(content)
	require.NoError(t, err)
	assert.Nil(t, res.InlineText)
	require.NotNil(t, res.Location)

	_, err = os.Stat(*res.Location)
	assert.NoError(t, err)
}

func TestGetPrefersInline(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	require.NoError(t, err)

	inline := "hello"
	loc := dir + "/should-not-be-read"
	got, err := fs.Get(&inline, &loc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestDeleteMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	require.NoError(t, err)
	assert.NoError(t, fs.Delete(dir+"/does-not-exist"))
}

func TestDetectMimeDefaultsToOctetStream(t *testing.T) {
	assert.Equal(t, "text/markdown", DetectMime("docs/readme.md"))
	assert.Equal(t, "application/octet-stream", DetectMime("data.bin"))
}

func TestIsValidUTF8(t *testing.T) {
	assert.True(t, IsValidUTF8([]byte("hello, world")))
	assert.False(t, IsValidUTF8([]byte{0xff, 0xfe, 0xfd}))
}
