package loadorder_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvazir/habasi/config"
	"github.com/alvazir/habasi/loadorder"
)

func testSetup(t *testing.T) (*config.Cfg, *config.Logger) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Quiet = true
	cfg.NoLog = true
	log, err := config.NewLogger(cfg)
	require.NoError(t, err)
	return cfg, log
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestResolveOpenMWConfig(t *testing.T) {
	cfg, log := testSetup(t)
	dir := t.TempDir()
	dataA := filepath.Join(dir, "dataA")
	dataB := filepath.Join(dir, "dataB")
	touch(t, filepath.Join(dataA, "Morrowind.esm"))
	touch(t, filepath.Join(dataA, "Shared.esp"))
	touch(t, filepath.Join(dataB, "Shared.esp"))
	touch(t, filepath.Join(dataB, "Mod.omwaddon"))
	touch(t, filepath.Join(dataA, "Grass.esp"))
	touch(t, filepath.Join(dataA, "Morrowind.bsa"))
	touch(t, filepath.Join(dataA, "notes.txt"))

	configPath := filepath.Join(dir, "openmw.cfg")
	content := "# comment\n" +
		"data=\"" + dataA + "\"\n" +
		"data=" + dataB + "\n" +
		"fallback-archive=Morrowind.bsa\n" +
		"content=Morrowind.esm\n" +
		"content=Shared.esp\n" +
		"content=Mod.omwaddon\n" +
		"groundcover=Grass.esp\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	order, err := loadorder.Resolve(configPath, &loadorder.Options{}, cfg, log)
	require.NoError(t, err)
	require.Len(t, order.Contents, 3)
	assert.Equal(t, filepath.Join(dataA, "Morrowind.esm"), order.Contents[0])
	// Later data directories win for duplicate names.
	assert.Equal(t, filepath.Join(dataB, "Shared.esp"), order.Contents[1])
	assert.Equal(t, filepath.Join(dataB, "Mod.omwaddon"), order.Contents[2])
	require.Len(t, order.Groundcovers, 1)
	assert.Equal(t, filepath.Join(dataA, "Grass.esp"), order.Groundcovers[0])
	require.Len(t, order.Archives, 1)
	assert.Equal(t, []string{dataA, dataB}, order.DataDirs)
}

func TestResolveMissingPluginTolerated(t *testing.T) {
	cfg, log := testSetup(t)
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	configPath := filepath.Join(dir, "openmw.cfg")
	content := "data=" + data + "\ncontent=Missing.esp\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	_, err := loadorder.Resolve(configPath, &loadorder.Options{}, cfg, log)
	assert.Error(t, err, "missing plugin is fatal by default")

	order, err := loadorder.Resolve(configPath, &loadorder.Options{IgnoreImportantErrors: true}, cfg, log)
	require.NoError(t, err)
	assert.Empty(t, order.Contents)
}

func TestResolveMorrowindIni(t *testing.T) {
	cfg, log := testSetup(t)
	dir := t.TempDir()
	dataFiles := filepath.Join(dir, "Data Files")
	touch(t, filepath.Join(dataFiles, "Morrowind.esm"))
	touch(t, filepath.Join(dataFiles, "Morrowind.bsa"))
	touch(t, filepath.Join(dataFiles, "Tribunal.bsa"))
	iniPath := filepath.Join(dir, "Morrowind.ini")
	content := "[Game Files]\nGameFile0=Morrowind.esm\n[Archives]\nArchive 0=Tribunal.bsa\n"
	require.NoError(t, os.WriteFile(iniPath, []byte(content), 0o644))

	order, err := loadorder.Resolve(iniPath, &loadorder.Options{}, cfg, log)
	require.NoError(t, err)
	require.Len(t, order.Contents, 1)
	assert.Equal(t, filepath.Join(dataFiles, "Morrowind.esm"), order.Contents[0])
	// Morrowind.bsa is prepended ahead of the listed archives.
	require.Len(t, order.Archives, 2)
	assert.Equal(t, filepath.Join(dataFiles, "Morrowind.bsa"), order.Archives[0].Path)
	assert.Equal(t, filepath.Join(dataFiles, "Tribunal.bsa"), order.Archives[1].Path)
}

func TestExpandPatternsGlob(t *testing.T) {
	cfg, log := testSetup(t)
	dir := t.TempDir()
	old := filepath.Join(dir, "B_old.esp")
	newer := filepath.Join(dir, "A_new.esp")
	touch(t, old)
	touch(t, newer)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	opts := &loadorder.Options{BaseDir: dir}
	expanded, err := loadorder.ExpandPatterns([]string{"glob:*.esp"}, opts, cfg, log)
	require.NoError(t, err)
	// Default order is by modification time.
	require.Len(t, expanded, 2)
	assert.Equal(t, old, expanded[0])
	assert.Equal(t, newer, expanded[1])

	opts.RegexSortByName = true
	expanded, err = loadorder.ExpandPatterns([]string{"glob:*.esp"}, opts, cfg, log)
	require.NoError(t, err)
	assert.Equal(t, []string{newer, old}, expanded)
}

func TestExpandPatternsRegex(t *testing.T) {
	cfg, log := testSetup(t)
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "LGNPC_GnaarMok.esp"))
	touch(t, filepath.Join(dir, "LGNPC_SecretMasters.esp"))
	touch(t, filepath.Join(dir, "Other.esp"))

	opts := &loadorder.Options{BaseDir: dir, RegexSortByName: true}
	expanded, err := loadorder.ExpandPatterns([]string{"regex:lgnpc_.*"}, opts, cfg, log)
	require.NoError(t, err)
	require.Len(t, expanded, 2)
	assert.Equal(t, filepath.Join(dir, "LGNPC_GnaarMok.esp"), expanded[0])

	// Case-sensitive matching finds nothing for the lowercased pattern.
	opts.RegexCaseSensitive = true
	opts.IgnoreImportantErrors = true
	expanded, err = loadorder.ExpandPatterns([]string{"regex:lgnpc_.*"}, opts, cfg, log)
	require.NoError(t, err)
	assert.Empty(t, expanded)
}

func TestResolvePlugin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Mod.esp")
	touch(t, path)
	resolved, err := loadorder.ResolvePlugin("Mod.esp", dir)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	_, err = loadorder.ResolvePlugin("Nope.esp", dir)
	assert.Error(t, err)
}
