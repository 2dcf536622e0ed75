package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeItem(t *testing.T, root, sport, event string, files ...string) string {
	t.Helper()
	dir := filepath.Join(root, sport, event)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	return dir
}

func completeItem(t *testing.T, root, sport, event string) string {
	t.Helper()
	return writeItem(t, root, sport, event, VideoFileName, CaptionFileName, RunMetaFileName)
}

func TestScan_OrdersBySportThenEvent(t *testing.T) {
	root := t.TempDir()
	completeItem(t, root, "tennis", "match_02")
	completeItem(t, root, "basketball", "game_01")
	completeItem(t, root, "tennis", "match_01")

	items, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "basketball/game_01", items[0].Key())
	assert.Equal(t, "tennis/match_01", items[1].Key())
	assert.Equal(t, "tennis/match_02", items[2].Key())
}

func TestScan_SkipsIncompleteEvents(t *testing.T) {
	root := t.TempDir()
	completeItem(t, root, "soccer", "full")
	writeItem(t, root, "soccer", "no_video", CaptionFileName, RunMetaFileName)
	writeItem(t, root, "soccer", "no_caption", VideoFileName, RunMetaFileName)
	writeItem(t, root, "soccer", "no_meta", VideoFileName, CaptionFileName)

	items, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "full", items[0].Event)
}

func TestScan_MissingRoot(t *testing.T) {
	items, err := Scan(filepath.Join(t.TempDir(), "nowhere"))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestScan_ItemPaths(t *testing.T) {
	root := t.TempDir()
	dir := completeItem(t, root, "golf", "hole_07")

	items, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, dir, item.Dir)
	assert.Equal(t, filepath.Join(dir, VideoFileName), item.VideoPath)
	assert.Equal(t, filepath.Join(dir, CaptionFileName), item.CaptionPath)
	assert.Equal(t, filepath.Join(dir, RunMetaFileName), item.RunMetaPath)
	assert.Equal(t, filepath.Join(dir, StatusFileName), item.StatusPath)
}

func TestScanner_CachesWithinTTL(t *testing.T) {
	root := t.TempDir()
	completeItem(t, root, "tennis", "match_01")

	s := NewScanner(root, WithCacheTTL(time.Hour))
	first, err := s.Items()
	require.NoError(t, err)
	require.Len(t, first, 1)

	completeItem(t, root, "tennis", "match_02")

	cached, err := s.Items()
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	s.Invalidate()
	fresh, err := s.Items()
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}
