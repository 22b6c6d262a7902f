package merge_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvazir/habasi/esp"
	"github.com/alvazir/habasi/merge"
)

func buildSmallStore(t *testing.T, masterSize uint64) (*merge.Store, *esp.Plugin) {
	t.Helper()
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(esp.Master{Name: "Morrowind.esm", Size: masterSize}),
		gmst("sDifficulty", "x"),
		extCell(0, 0, &esp.Reference{MastIndex: 1, RefrIndex: 3, ID: "thing"}))
	return store, compose(t, store)
}

// An unchanged output is detected and the previous file kept untouched,
// preserving its modification time.
func TestWriteUnchangedPreservesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Out.esp")

	store, plugin := buildSmallStore(t, 100)
	wrote, err := store.WriteOutput(path, plugin, 0)
	require.NoError(t, err)
	assert.True(t, wrote)
	firstStat, err := os.Stat(path)
	require.NoError(t, err)

	store2, plugin2 := buildSmallStore(t, 100)
	wrote, err = store2.WriteOutput(path, plugin2, 0)
	require.NoError(t, err)
	assert.False(t, wrote)
	secondStat, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, firstStat.ModTime(), secondStat.ModTime())
}

// A master-size-only change still counts as unchanged.
func TestWriteMasterSizeOnlyChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Out.esp")

	store, plugin := buildSmallStore(t, 100)
	_, err := store.WriteOutput(path, plugin, 0)
	require.NoError(t, err)

	store2, plugin2 := buildSmallStore(t, 999)
	wrote, err := store2.WriteOutput(path, plugin2, 0)
	require.NoError(t, err)
	assert.False(t, wrote)
}

// A real record change rewrites the file.
func TestWriteRealChangeRewrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Out.esp")

	store, plugin := buildSmallStore(t, 100)
	_, err := store.WriteOutput(path, plugin, 0)
	require.NoError(t, err)

	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store2 := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store2, "A.esp", headerRecord(esp.Master{Name: "Morrowind.esm", Size: 100}),
		gmst("sDifficulty", "different"),
		extCell(0, 0, &esp.Reference{MastIndex: 1, RefrIndex: 3, ID: "thing"}))
	plugin2 := compose(t, store2)
	wrote, err := store2.WriteOutput(path, plugin2, 0)
	require.NoError(t, err)
	assert.True(t, wrote)
	reread, err := esp.Read(path)
	require.NoError(t, err)
	assert.Equal(t, plugin2.Encode(), reread.Encode())
}

// Dry runs never touch the filesystem.
func TestWriteDryRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Out.esp")
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	opts.DryRun = true
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(), gmst("sDifficulty", "x"))
	plugin := compose(t, store)
	wrote, err := store.WriteOutput(path, plugin, 0)
	require.NoError(t, err)
	assert.True(t, wrote)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
