package merge

import (
	"fmt"
	"hash/crc64"
	"strings"

	"github.com/alvazir/habasi/esp"
)

// crc64Table is the ECMA-182 table; synthesized SSCR ids are the decimal
// CRC64 of the script name and must stay stable across runs and releases.
var crc64Table = crc64.MakeTable(crc64.ECMA)

const (
	sndgIDMaxLen     = 32
	sndgIDSuffixLen  = 4
	sndgMaxSoundType = 7
)

// SynthesizeStartScriptID fills the id of a SSCR record that lacks one.
func SynthesizeStartScriptID(record *esp.Record) string {
	id := fmt.Sprintf("%d", crc64.Checksum([]byte(esp.ScriptName(record)), crc64Table))
	esp.SetStartScriptID(record, id)
	return id
}

// SynthesizeSoundGenID fills the id of a SNDG record that lacks one. The id
// is the creature name truncated to 28 bytes plus the sound type rendered
// as a zero-padded four-digit suffix; unknown sound types (above 7) leave
// the record without an id and the caller warns.
func SynthesizeSoundGenID(record *esp.Record) (string, bool) {
	creature, soundType := esp.SoundGenInfo(record)
	if soundType > sndgMaxSoundType {
		return "", false
	}
	if len(creature) > sndgIDMaxLen-sndgIDSuffixLen {
		creature = creature[:sndgIDMaxLen-sndgIDSuffixLen]
	}
	id := fmt.Sprintf("%s%0*d", creature, sndgIDSuffixLen, soundType)
	esp.SetRecordID(record, id)
	return id, true
}

// recordKey derives the canonical store key of a generic record. CELL,
// LAND, DIAL and INFO never reach here; they have dedicated tables.
func recordKey(record *esp.Record) (string, error) {
	switch record.Tag {
	case "SKIL", "MGEF":
		index, ok := esp.NumericIndex(record)
		if !ok {
			return "", fmt.Errorf("%s record has no index", record.Tag)
		}
		return fmt.Sprintf("%d", index), nil
	case "SSCR":
		id := esp.StartScriptID(record)
		if id == "" {
			id = SynthesizeStartScriptID(record)
		}
		return strings.ToLower(id), nil
	default:
		return strings.ToLower(record.ID()), nil
	}
}

// gridKey renders an exterior grid as a map key.
func gridKey(grid esp.Grid) string { return fmt.Sprintf("%d:%d", grid.X, grid.Y) }
