package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	idx, err := New(t.TempDir(), true).Load()
	require.NoError(t, err)
	assert.Empty(t, idx)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := New(root, false)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Index{
		"oc-2":  {File: "oc-2.jpg", FetchedAt: at},
		"gh-42": {File: "gh-42.png", FetchedAt: at, LastModified: "Fri, 01 Mar 2024 10:00:00 GMT"},
	}
	require.NoError(t, s.Save(in))
	_, err := os.Stat(filepath.Join(root, "cache", "images.json"))
	require.NoError(t, err, "期望索引文件存在")

	out, err := s.Load()
	require.NoError(t, err)
	require.Len(t, out, 2)
	e := out["gh-42"]
	assert.Equal(t, "gh-42.png", e.File)
	assert.True(t, e.FetchedAt.Equal(at))
	assert.Equal(t, "Fri, 01 Mar 2024 10:00:00 GMT", e.LastModified)
	assert.Equal(t, "oc-2.jpg", out["oc-2"].File)
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	s := New(t.TempDir(), true)

	err := s.Save(Index{"gh-1": {File: "gh-1.png"}})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "只读时不应创建索引文件")
}

func TestStore_RejectsPathLikeFileName(t *testing.T) {
	s := New(t.TempDir(), false)
	assert.Error(t, s.Save(Index{"gh-1": {File: "../etc/passwd"}}))
}

func TestStore_CorruptIndex(t *testing.T) {
	s := New(t.TempDir(), false)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{"), 0o644))

	_, err := s.Load()
	assert.Error(t, err, "期望损坏的索引报错")
}
