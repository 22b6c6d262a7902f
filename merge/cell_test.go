package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvazir/habasi/esp"
	"github.com/alvazir/habasi/merge"
)

func decodeCells(t *testing.T, plugin *esp.Plugin) []*esp.Cell {
	t.Helper()
	var cells []*esp.Cell
	for _, record := range recordsByTag(plugin, "CELL") {
		cell, err := esp.DecodeCell(record)
		require.NoError(t, err)
		cells = append(cells, cell)
	}
	return cells
}

func decodeHeader(t *testing.T, plugin *esp.Plugin) *esp.Header {
	t.Helper()
	header, err := esp.DecodeHeader(plugin.Records[0])
	require.NoError(t, err)
	return header
}

// Two plugins contribute owned references to the same exterior cell; with
// reindexing on, the output holds all of them renumbered 1..n.
func TestCellMergeReindex(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	opts.Reindex = true
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(),
		extCell(-2, 7, ref(0, 11, "a_1"), ref(0, 12, "a_2"), ref(0, 13, "a_3")))
	ingestPlugin(t, store, "B.esp", headerRecord(),
		extCell(-2, 7, ref(0, 5, "b_1"), ref(0, 6, "b_2")))
	plugin := compose(t, store)

	cells := decodeCells(t, plugin)
	require.Len(t, cells, 1)
	require.Len(t, cells[0].References, 5)
	for i, reference := range cells[0].References {
		assert.Equal(t, uint32(0), reference.MastIndex)
		assert.Equal(t, uint32(i+1), reference.RefrIndex)
	}
}

// Without reindexing, owned indices stay monotone nondecreasing in output
// order.
func TestCellMergeMonotoneWithoutReindex(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(),
		extCell(0, 0, ref(0, 9, "a_1")),
		extCell(0, 1, ref(0, 3, "b_1")))
	plugin := compose(t, store)
	last := uint32(0)
	for _, cell := range decodeCells(t, plugin) {
		for _, reference := range cell.References {
			require.GreaterOrEqual(t, reference.RefrIndex, last)
			last = reference.RefrIndex
		}
	}
}

// A reference into an external master keeps a master index that resolves
// inside the output header, and a later deletion of it survives as a
// deleted reference.
func TestExternalReferenceDeletion(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	morrowind := esp.Master{Name: "Morrowind.esm", Size: 100}
	ingestPlugin(t, store, "A.esp", headerRecord(morrowind),
		extCell(5, 5, &esp.Reference{MastIndex: 1, RefrIndex: 4, ID: "ex_door"}))
	deleted := &esp.Reference{MastIndex: 1, RefrIndex: 4, ID: "ex_door", Deleted: true}
	ingestPlugin(t, store, "B.esp", headerRecord(morrowind), extCell(5, 5, deleted))
	plugin := compose(t, store)

	header := decodeHeader(t, plugin)
	require.Len(t, header.Masters, 1)
	assert.Equal(t, "Morrowind.esm", header.Masters[0].Name)

	cells := decodeCells(t, plugin)
	require.Len(t, cells, 1)
	require.Len(t, cells[0].References, 1)
	reference := cells[0].References[0]
	assert.Equal(t, uint32(1), reference.MastIndex)
	assert.Equal(t, uint32(4), reference.RefrIndex)
	assert.True(t, reference.Deleted)
}

// Every emitted master index resolves inside the header master table.
func TestMasterIndicesResolve(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp",
		headerRecord(esp.Master{Name: "Morrowind.esm", Size: 1}, esp.Master{Name: "Tribunal.esm", Size: 2}),
		extCell(1, 1,
			&esp.Reference{MastIndex: 2, RefrIndex: 7, ID: "tr_thing"},
			ref(0, 1, "own_thing")))
	plugin := compose(t, store)
	header := decodeHeader(t, plugin)
	for _, cell := range decodeCells(t, plugin) {
		for _, reference := range cell.References {
			if reference.MastIndex > 0 {
				assert.LessOrEqual(t, int(reference.MastIndex), len(header.Masters))
			}
		}
	}
}

// strip_masters holds when no kept reference needs a master, and degrades
// to a no-op the moment one does.
func TestStripMasters(t *testing.T) {
	cfg, log := testSetup(t)

	opts := testOptions(merge.ModeReplace)
	opts.StripMasters = true
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(esp.Master{Name: "Morrowind.esm", Size: 1}),
		extCell(0, 0, ref(0, 1, "own_thing")))
	plugin := compose(t, store)
	assert.Empty(t, decodeHeader(t, plugin).Masters)

	opts2 := testOptions(merge.ModeReplace)
	opts2.StripMasters = true
	store2 := merge.NewStore("Out.esp", &opts2, cfg, log)
	ingestPlugin(t, store2, "A.esp", headerRecord(esp.Master{Name: "Morrowind.esm", Size: 1}),
		extCell(0, 0, &esp.Reference{MastIndex: 1, RefrIndex: 2, ID: "ext_thing"}))
	plugin2 := compose(t, store2)
	require.Len(t, decodeHeader(t, plugin2).Masters, 1)
}

// The reference sort key is stable across runs: moved first, persistent
// before temporary, externals by master index, owned last.
func TestReferenceSortOrder(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	owned := ref(0, 50, "own")
	persistentExt := &esp.Reference{MastIndex: 1, RefrIndex: 10, ID: "p_ext", Persistent: true}
	temporaryExt := &esp.Reference{MastIndex: 1, RefrIndex: 11, ID: "t_ext"}
	ingestPlugin(t, store, "A.esp", headerRecord(esp.Master{Name: "Morrowind.esm", Size: 1}),
		extCell(3, 3, owned, temporaryExt, persistentExt))
	plugin := compose(t, store)
	cells := decodeCells(t, plugin)
	require.Len(t, cells, 1)
	require.Len(t, cells[0].References, 3)
	assert.Equal(t, "p_ext", cells[0].References[0].ID)
	assert.Equal(t, "t_ext", cells[0].References[1].ID)
	assert.Equal(t, "own", cells[0].References[2].ID)
}

// Deleting an owned reference removes it from the output entirely.
func TestDeletedOwnedReferenceDropped(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(),
		extCell(2, 2, ref(0, 1, "thing"), ref(0, 2, "other")))
	deleted := ref(1, 1, "thing")
	deleted.Deleted = true
	ingestPlugin(t, store, "B.esp", headerRecord(esp.Master{Name: "A.esp", Size: 1}),
		extCell(2, 2, deleted))
	plugin := compose(t, store)
	cells := decodeCells(t, plugin)
	require.Len(t, cells, 1)
	require.Len(t, cells[0].References, 1)
	assert.Equal(t, "other", cells[0].References[0].ID)
}

// Merging twice over the same inputs yields bit-identical output.
func TestMergeIsDeterministic(t *testing.T) {
	cfg, log := testSetup(t)
	build := func() []byte {
		opts := testOptions(merge.ModeReplace)
		opts.Reindex = true
		store := merge.NewStore("Out.esp", &opts, cfg, log)
		ingestPlugin(t, store, "A.esp", headerRecord(esp.Master{Name: "Morrowind.esm", Size: 9}),
			gmst("sDifficulty", "x"),
			dialRecord("greet", esp.DialogueTopic),
			infoRecord("1", esp.DialogueTopic),
			extCell(1, 2, ref(0, 1, "a"), ref(0, 2, "b"),
				&esp.Reference{MastIndex: 1, RefrIndex: 77, ID: "ext"}))
		ingestPlugin(t, store, "B.esp", headerRecord(),
			extCell(1, 2, ref(0, 1, "c")))
		return compose(t, store).Encode()
	}
	assert.Equal(t, build(), build())
}

type fakeProbe struct {
	grass map[string]bool
}

func (p *fakeProbe) IsGroundcover(mesh string) (bool, bool, error) {
	grass, ok := p.grass[mesh]
	if !ok {
		return false, false, nil
	}
	return true, grass, nil
}

// Groundcover-marked instances leave the primary output and land in the
// secondary plugin with their cells; interiors never do.
func TestPartitionGrass(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeCompleteReplace)
	opts.TurnNormalGrass = true
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "G.esp", headerRecord(),
		stat("flora_bc_grass_01", "grass/flora_bc_grass_01.nif"),
		stat("ex_rock", "rocks/rock.nif"),
		extCell(4, 4,
			ref(0, 1, "flora_bc_grass_01"),
			ref(0, 2, "ex_rock")))
	require.NoError(t, store.Finalize())
	probe := &fakeProbe{grass: map[string]bool{
		"grass/flora_bc_grass_01.nif": true,
		"rocks/rock.nif":              false,
	}}
	secondary, err := store.PartitionGrass(probe)
	require.NoError(t, err)

	primary, err := store.Compose()
	require.NoError(t, err)
	primaryCells := decodeCells(t, primary)
	require.Len(t, primaryCells, 1)
	require.Len(t, primaryCells[0].References, 1)
	assert.Equal(t, "ex_rock", primaryCells[0].References[0].ID)

	secondaryCells := decodeCells(t, secondary)
	require.Len(t, secondaryCells, 1)
	require.Len(t, secondaryCells[0].References, 1)
	assert.Equal(t, "flora_bc_grass_01", secondaryCells[0].References[0].ID)
	stats := recordsByTag(secondary, "STAT")
	require.Len(t, stats, 1)
	assert.Equal(t, "flora_bc_grass_01", stats[0].ID())
}

func TestSecondaryName(t *testing.T) {
	assert.Equal(t, "Out-GRS.esp", merge.SecondaryName("Out.esp", "-GRS.esp"))
	assert.Equal(t, "dir/Out-GRS.esp", merge.SecondaryName("dir/Out.esp", "-GRS.esp"))
}
