package merge_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvazir/habasi/config"
	"github.com/alvazir/habasi/esp"
	"github.com/alvazir/habasi/merge"
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

func testOptions(mode merge.Mode) merge.ListOptions {
	return merge.ListOptions{Mode: mode}
}

func headerRecord(masters ...esp.Master) *esp.Record {
	header := &esp.Header{Version: 1.3, Author: "test", Masters: masters}
	return header.Encode()
}

func gmst(id, value string) *esp.Record {
	return &esp.Record{Tag: "GMST", Subs: []esp.Subrecord{
		{Tag: "NAME", Data: append([]byte(id), 0)},
		{Tag: "STRV", Data: append([]byte(value), 0)},
	}}
}

func stat(id, mesh string) *esp.Record {
	return &esp.Record{Tag: "STAT", Subs: []esp.Subrecord{
		{Tag: "NAME", Data: append([]byte(id), 0)},
		{Tag: "MODL", Data: append([]byte(mesh), 0)},
	}}
}

func dialRecord(id string, dialogueType int) *esp.Record {
	return &esp.Record{Tag: "DIAL", Subs: []esp.Subrecord{
		{Tag: "NAME", Data: append([]byte(id), 0)},
		{Tag: "DATA", Data: []byte{byte(dialogueType)}},
	}}
}

func infoRecord(id string, dialogueType int) *esp.Record {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, uint32(dialogueType))
	return &esp.Record{Tag: "INFO", Subs: []esp.Subrecord{
		{Tag: "INAM", Data: append([]byte(id), 0)},
		{Tag: "DATA", Data: data},
	}}
}

func ref(mast, index uint32, id string) *esp.Reference {
	return &esp.Reference{MastIndex: mast, RefrIndex: index, ID: id}
}

func extCell(x, y int32, refs ...*esp.Reference) *esp.Record {
	cell := &esp.Cell{Grid: esp.Grid{X: x, Y: y}, References: refs}
	return cell.Encode()
}

func ingestPlugin(t *testing.T, store *merge.Store, name string, records ...*esp.Record) {
	t.Helper()
	ps := store.BeginPlugin(name, name)
	for i, record := range records {
		require.NoError(t, store.Ingest(record, ps, i == 0))
	}
	store.CommitPlugin(ps)
}

func compose(t *testing.T, store *merge.Store) *esp.Plugin {
	t.Helper()
	require.NoError(t, store.Finalize())
	plugin, err := store.Compose()
	require.NoError(t, err)
	return plugin
}

func recordsByTag(plugin *esp.Plugin, tag string) []*esp.Record {
	var out []*esp.Record
	for _, record := range plugin.Records {
		if record.Tag == tag {
			out = append(out, record)
		}
	}
	return out
}

func TestLastWriterWins(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(), gmst("sDifficulty", "old"))
	ingestPlugin(t, store, "B.esp", headerRecord(), gmst("sDifficulty", "new"))
	plugin := compose(t, store)
	gmsts := recordsByTag(plugin, "GMST")
	require.Len(t, gmsts, 1)
	assert.Equal(t, "new", gmsts[0].ZString("STRV"))
}

func TestKeepModeStacksVariants(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeKeep)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	levi := func(id string, chance byte) *esp.Record {
		return &esp.Record{Tag: "LEVI", Subs: []esp.Subrecord{
			{Tag: "NAME", Data: append([]byte(id), 0)},
			{Tag: "DATA", Data: []byte{chance, 0, 0, 0}},
		}}
	}
	ingestPlugin(t, store, "A.esp", headerRecord(), levi("random_gold", 1))
	ingestPlugin(t, store, "B.esp", headerRecord(), levi("random_gold", 2))
	plugin := compose(t, store)
	assert.Len(t, recordsByTag(plugin, "LEVI"), 2)
}

func TestSimpleKindsNeverStack(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeKeep)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(), gmst("sDifficulty", "a"))
	ingestPlugin(t, store, "B.esp", headerRecord(), gmst("sDifficulty", "b"))
	plugin := compose(t, store)
	gmsts := recordsByTag(plugin, "GMST")
	require.Len(t, gmsts, 1)
	assert.Equal(t, "b", gmsts[0].ZString("STRV"))
}

func TestDuplicateRecordsDoNotStack(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeKeep)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(), stat("rock_01", "rocks\\rock_01.nif"))
	ingestPlugin(t, store, "B.esp", headerRecord(), stat("rock_01", "rocks\\rock_01.nif"))
	plugin := compose(t, store)
	assert.Len(t, recordsByTag(plugin, "STAT"), 1)
}

func TestStartScriptIDSynthesisIsStable(t *testing.T) {
	sscr := func() *esp.Record {
		return &esp.Record{Tag: "SSCR", Subs: []esp.Subrecord{
			{Tag: "NAME", Data: []byte("MyStartScript\x00")},
		}}
	}
	first := merge.SynthesizeStartScriptID(sscr())
	second := merge.SynthesizeStartScriptID(sscr())
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
	// Decimal CRC64 digits only.
	assert.Regexp(t, `^\d+$`, first)
}

func TestSoundGenIDSynthesis(t *testing.T) {
	sndg := func(creature string, soundType uint32) *esp.Record {
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, soundType)
		return &esp.Record{Tag: "SNDG", Subs: []esp.Subrecord{
			{Tag: "DATA", Data: data},
			{Tag: "CNAM", Data: append([]byte(creature), 0)},
		}}
	}
	id, ok := merge.SynthesizeSoundGenID(sndg("rat", 3))
	require.True(t, ok)
	assert.Equal(t, "rat0003", id)

	long := "a_creature_with_a_very_long_name_indeed"
	id, ok = merge.SynthesizeSoundGenID(sndg(long, 7))
	require.True(t, ok)
	assert.Equal(t, long[:28]+"0007", id)

	_, ok = merge.SynthesizeSoundGenID(sndg("rat", 8))
	assert.False(t, ok)
}

func TestDialJournalOrderingAndTypeChange(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeReplace)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	ingestPlugin(t, store, "A.esp", headerRecord(),
		dialRecord("greet", esp.DialogueTopic),
		infoRecord("1", esp.DialogueTopic),
		dialRecord("latest rumors", esp.DialogueTopic),
		infoRecord("7", esp.DialogueTopic),
	)
	ingestPlugin(t, store, "B.esp", headerRecord(),
		dialRecord("greet", esp.DialogueJournal),
		infoRecord("2", esp.DialogueJournal),
	)
	plugin := compose(t, store)

	dials := recordsByTag(plugin, "DIAL")
	require.Len(t, dials, 2)
	// The Journal dialogue comes first even though it was merged second.
	assert.Equal(t, "greet", dials[0].ID())
	assert.Equal(t, esp.DialogueJournal, esp.DialType(dials[0]))

	infos := recordsByTag(plugin, "INFO")
	require.Len(t, infos, 2)
	// The Topic-typed INFO of the retyped dialogue is gone.
	assert.Equal(t, "2", infos[0].ID())
	assert.Equal(t, "7", infos[1].ID())

	// DIAL precedes its INFO in the flat record stream.
	var order []string
	for _, record := range plugin.Records {
		if record.Tag == "DIAL" || record.Tag == "INFO" {
			order = append(order, record.Tag+":"+record.ID())
		}
	}
	assert.Equal(t, []string{"DIAL:greet", "INFO:2", "DIAL:latest rumors", "INFO:7"}, order)
}

func TestKeepOnlyLastInfo(t *testing.T) {
	cfg, log := testSetup(t)
	opts := testOptions(merge.ModeKeep)
	store := merge.NewStore("Out.esp", &opts, cfg, log)
	const problematic = "19511310302976825065"
	infoA := infoRecord(problematic, esp.DialogueTopic)
	infoA.SetSub("NAME", []byte("from GnaarMok\x00"))
	infoB := infoRecord(problematic, esp.DialogueTopic)
	infoB.SetSub("NAME", []byte("from SecretMasters\x00"))
	ingestPlugin(t, store, "LGNPC_GnaarMok.esp", headerRecord(),
		dialRecord("threaten", esp.DialogueTopic), infoA)
	ingestPlugin(t, store, "LGNPC_SecretMasters.esp", headerRecord(),
		dialRecord("threaten", esp.DialogueTopic), infoB)
	plugin := compose(t, store)
	infos := recordsByTag(plugin, "INFO")
	require.Len(t, infos, 1)
	assert.Equal(t, "from SecretMasters", infos[0].ZString("NAME"))
}
