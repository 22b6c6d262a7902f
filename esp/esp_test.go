package esp_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvazir/habasi/esp"
)

func testHeader(masters []esp.Master) *esp.Record {
	header := &esp.Header{
		Version:     1.3,
		Author:      "test",
		Description: "test plugin",
		NumRecords:  1,
		Masters:     masters,
	}
	return header.Encode()
}

func TestDecodeRoundTrip(t *testing.T) {
	plugin := &esp.Plugin{Records: []*esp.Record{
		testHeader([]esp.Master{{Name: "Morrowind.esm", Size: 79837557}}),
		{Tag: "GMST", Subs: []esp.Subrecord{
			{Tag: "NAME", Data: []byte("sDifficulty\x00")},
			{Tag: "STRV", Data: []byte("Difficulty\x00")},
		}},
	}}
	data := plugin.Encode()
	decoded, err := esp.Decode(data)
	require.NoError(t, err)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, "TES3", decoded.Records[0].Tag)
	assert.Equal(t, "GMST", decoded.Records[1].Tag)
	assert.Equal(t, "sDifficulty", decoded.Records[1].ID())
	// Unmutated records round-trip byte-identical.
	assert.Equal(t, data, decoded.Encode())
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	plugin := &esp.Plugin{Records: []*esp.Record{
		testHeader(nil),
		{Tag: "LUAL", Subs: []esp.Subrecord{{Tag: "NAME", Data: []byte("x\x00")}}},
	}}
	// The writer does not police tags; the reader does.
	_, err := esp.Decode(plugin.Encode())
	require.Error(t, err)
	assert.ErrorIs(t, err, esp.ErrUnknownTag)
	var unknownTag *esp.UnknownTagError
	require.ErrorAs(t, err, &unknownTag)
	assert.Equal(t, "LUAL", unknownTag.Tag)
}

func TestDecodeRequiresHeaderFirst(t *testing.T) {
	plugin := &esp.Plugin{Records: []*esp.Record{
		{Tag: "GMST", Subs: []esp.Subrecord{{Tag: "NAME", Data: []byte("x\x00")}}},
	}}
	_, err := esp.Decode(plugin.Encode())
	assert.ErrorIs(t, err, esp.ErrCorrupted)
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Test.esp")
	plugin := &esp.Plugin{Records: []*esp.Record{testHeader(nil)}}
	require.NoError(t, plugin.Write(path))
	loaded, err := esp.Read(path)
	require.NoError(t, err)
	assert.Equal(t, plugin.Encode(), loaded.Encode())

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	_, err = esp.Read(path)
	assert.Error(t, err)
}

func TestHeaderDecode(t *testing.T) {
	record := testHeader([]esp.Master{
		{Name: "Morrowind.esm", Size: 100},
		{Name: "Tribunal.esm", Size: 200},
	})
	header, err := esp.DecodeHeader(record)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, header.Version, 0.001)
	assert.Equal(t, "test", header.Author)
	assert.Equal(t, uint32(1), header.NumRecords)
	require.Len(t, header.Masters, 2)
	assert.Equal(t, "Tribunal.esm", header.Masters[1].Name)
	assert.Equal(t, uint64(200), header.Masters[1].Size)
}

func TestCellDecodeEncode(t *testing.T) {
	scale := float32(1.5)
	cell := &esp.Cell{
		Name:      "",
		DataFlags: 0,
		Grid:      esp.Grid{X: -2, Y: 7},
		References: []*esp.Reference{
			{MastIndex: 1, RefrIndex: 4, ID: "ex_vivec_p", Persistent: true},
			{MastIndex: 0, RefrIndex: 1, ID: "flora_bc_grass_01", Scale: &scale},
		},
	}
	record := cell.Encode()
	decoded, err := esp.DecodeCell(record)
	require.NoError(t, err)
	assert.False(t, decoded.Interior())
	assert.Equal(t, esp.Grid{X: -2, Y: 7}, decoded.Grid)
	require.Len(t, decoded.References, 2)

	persistent := decoded.References[0]
	assert.Equal(t, uint32(1), persistent.MastIndex)
	assert.Equal(t, uint32(4), persistent.RefrIndex)
	assert.True(t, persistent.Persistent)
	assert.Equal(t, "ex_vivec_p", persistent.ID)

	temporary := decoded.References[1]
	assert.Equal(t, uint32(0), temporary.MastIndex)
	assert.False(t, temporary.Persistent)
	require.NotNil(t, temporary.Scale)
	assert.InDelta(t, 1.5, *temporary.Scale, 0.001)
}

func TestCellInterior(t *testing.T) {
	cell := &esp.Cell{Name: "Balmora, Guild of Mages", DataFlags: 0x01}
	decoded, err := esp.DecodeCell(cell.Encode())
	require.NoError(t, err)
	assert.True(t, decoded.Interior())
	assert.Equal(t, "Balmora, Guild of Mages", decoded.DisplayName())
}

func TestCellMovedReference(t *testing.T) {
	cell := &esp.Cell{
		Grid: esp.Grid{X: 1, Y: 1},
		References: []*esp.Reference{
			{MastIndex: 1, RefrIndex: 9, ID: "chargen_boat", Persistent: true,
				MovedCell: &esp.Grid{X: 2, Y: 2}},
		},
	}
	decoded, err := esp.DecodeCell(cell.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.References, 1)
	require.NotNil(t, decoded.References[0].MovedCell)
	assert.Equal(t, esp.Grid{X: 2, Y: 2}, *decoded.References[0].MovedCell)
}

func TestLandRoundTrip(t *testing.T) {
	textures := make([][]uint16, 16)
	for i := range textures {
		textures[i] = make([]uint16, 16)
	}
	textures[3][5] = 7
	land := &esp.Land{Grid: esp.Grid{X: 4, Y: -1}, Textures: textures}
	decoded, err := esp.DecodeLand(land.Encode())
	require.NoError(t, err)
	assert.Equal(t, esp.Grid{X: 4, Y: -1}, decoded.Grid)
	assert.Equal(t, uint16(7), decoded.Textures[3][5])
}

func TestDialInfoTypes(t *testing.T) {
	dial := &esp.Record{Tag: "DIAL", Subs: []esp.Subrecord{
		{Tag: "NAME", Data: []byte("greet\x00")},
		{Tag: "DATA", Data: []byte{byte(esp.DialogueJournal)}},
	}}
	assert.Equal(t, esp.DialogueJournal, esp.DialType(dial))
	esp.SetDialType(dial, esp.DialogueTopic)
	assert.Equal(t, esp.DialogueTopic, esp.DialType(dial))

	info := &esp.Record{Tag: "INFO", Subs: []esp.Subrecord{
		{Tag: "INAM", Data: []byte("1\x00")},
		{Tag: "DATA", Data: []byte{4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
	}}
	infoType, err := esp.InfoType(info)
	require.NoError(t, err)
	assert.Equal(t, esp.DialogueJournal, infoType)
	require.NoError(t, esp.SetInfoType(info, esp.DialogueTopic))
	infoType, err = esp.InfoType(info)
	require.NoError(t, err)
	assert.Equal(t, esp.DialogueTopic, infoType)
}

func TestCreatureScale(t *testing.T) {
	record := &esp.Record{Tag: "CREA", Subs: []esp.Subrecord{
		{Tag: "NAME", Data: []byte("rat\x00")},
	}}
	record.SetSub("XSCL", []byte{0, 0, 128, 63}) // 1.0
	assert.True(t, esp.DropDefaultCreatureScale(record))
	assert.False(t, record.HasSub("XSCL"))
}
