package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvazir/habasi/config"
)

func TestParseMergeList(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{
			name: "plain commas",
			spec: "Out.esp, A.esp, B.esp",
			want: []string{"Out.esp", "A.esp", "B.esp"},
		},
		{
			name: "double quotes keep commas",
			spec: `Out.esp, "Mod, With Commas.esp", B.esp`,
			want: []string{"Out.esp", "Mod, With Commas.esp", "B.esp"},
		},
		{
			name: "single quotes",
			spec: "Out.esp, 'Mod, Single.esp'",
			want: []string{"Out.esp", "Mod, Single.esp"},
		},
		{
			name: "triple single quotes",
			spec: "Out.esp, '''Mod's \"quoted\" file.esp'''",
			want: []string{"Out.esp", `Mod's "quoted" file.esp`},
		},
		{
			name: "backslash escapes comma",
			spec: `Out.esp, Mod\, Escaped.esp`,
			want: []string{"Out.esp", "Mod, Escaped.esp"},
		},
		{
			name: "options pass through",
			spec: "Out.esp, replace, reindex, A.esp",
			want: []string{"Out.esp", "replace", "reindex", "A.esp"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := config.ParseMergeList(tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseMergeListErrors(t *testing.T) {
	_, err := config.ParseMergeList("Out.esp, 'unterminated")
	assert.Error(t, err)
	_, err = config.ParseMergeList("   ")
	assert.Error(t, err)
}

func TestPresetLists(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, cfg.PresetsActive())

	cfg.PresetCheckReferences = true
	require.True(t, cfg.PresetsActive())
	lists := cfg.PresetLists()
	require.Len(t, lists, 1)
	assert.Equal(t, "CheckReferences.esp", lists[0][0])
	assert.Contains(t, lists[0], "dry_run")

	cfg.PresetTurnNormalGrass = true
	lists = cfg.PresetLists()
	require.Len(t, lists, 1)
	assert.Equal(t, "TurnNormalGrass.esp", lists[0][0])
	// -C contributes its reporting token to -T.
	assert.Contains(t, lists[0], "show_missing_refs")

	cfg.PresetMergeLoadOrder = true
	lists = cfg.PresetLists()
	require.Len(t, lists, 1)
	assert.Equal(t, "MergedLoadOrder.esp", lists[0][0])
	assert.Contains(t, lists[0], "turn_normal_grass")
}
