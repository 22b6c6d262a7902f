package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvazir/habasi/merge"
)

func TestApplyListOptions(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeKeep)
	list := []string{"Out.esp", "replace", "reindex", "base_dir:mods", "no_compare", "A.esp", "B.esp"}
	index, err := opts.Apply(list, cfg, log)
	require.NoError(t, err)
	assert.Equal(t, 5, index)
	assert.Equal(t, merge.ModeReplace, opts.Mode)
	assert.True(t, opts.Reindex)
	assert.True(t, opts.NoCompare)
	assert.Equal(t, "mods", opts.BaseDir)
}

func TestApplyListOptionsNegation(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeKeep)
	opts.Reindex = true
	opts.NoCompare = true
	list := []string{"Out.esp", "no_reindex", "compare", "A.esp"}
	index, err := opts.Apply(list, cfg, log)
	require.NoError(t, err)
	assert.Equal(t, 3, index)
	assert.False(t, opts.Reindex)
	assert.False(t, opts.NoCompare)
}

func TestImplicitMutations(t *testing.T) {
	cfg, log := testSetup(t)

	opts := testOptions(merge.ModeKeep)
	_, err := opts.Apply([]string{"Out.esp", "exclude_deleted_records", "A.esp"}, cfg, log)
	require.NoError(t, err)
	assert.True(t, opts.UseLoadOrder, "exclude_deleted_records implies use_load_order")

	grass := testOptions(merge.ModeKeep)
	_, err = grass.Apply([]string{"Out.esp", "grass", "turn_normal_grass", "A.esp"}, cfg, log)
	require.NoError(t, err)
	assert.False(t, grass.TurnNormalGrass, "grass mode drops turn_normal_grass")
	assert.True(t, grass.InsufficientMerge, "grass mode forces insufficient_merge")

	based := testOptions(merge.ModeKeep)
	_, err = based.Apply([]string{"Out.esp", "base_dir:mods", "use_load_order", "A.esp"}, cfg, log)
	require.NoError(t, err)
	assert.Empty(t, based.BaseDir, "use_load_order without force_base_dir clears base_dir")
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		token string
		mode  merge.Mode
		ok    bool
	}{
		{"keep", merge.ModeKeep, true},
		{"keep_without_lands", merge.ModeKeepWithoutLands, true},
		{"replace", merge.ModeReplace, true},
		{"complete_replace", merge.ModeCompleteReplace, true},
		{"grass", merge.ModeGrass, true},
		{"jobasha", merge.ModeKeep, false},
	}
	for _, tc := range tests {
		mode, ok := merge.ParseMode(tc.token)
		assert.Equal(t, tc.ok, ok, tc.token)
		if tc.ok {
			assert.Equal(t, tc.mode, mode, tc.token)
			assert.Equal(t, tc.token, mode.String())
		}
	}
}
