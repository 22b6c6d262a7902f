package esp

// Small typed accessors for kinds the merger touches a single field of.
// Everything here edits the generic record in place so untouched records
// keep their exact byte layout.

// ScriptName returns the script a SSCR record starts (NAME subrecord).
func ScriptName(record *Record) string { return record.ZString("NAME") }

// StartScriptID returns the SSCR id (DATA subrecord); empty for the header
// records some editors emit without one.
func StartScriptID(record *Record) string { return record.ZString("DATA") }

// SetStartScriptID assigns a synthesized SSCR id.
func SetStartScriptID(record *Record, id string) {
	record.SetSub("DATA", encodeZString(id))
}

// SoundGenInfo returns the creature name and sound-type value of a SNDG
// record.
func SoundGenInfo(record *Record) (creature string, soundType uint32) {
	creature = record.ZString("CNAM")
	if sub := record.Sub("DATA"); sub != nil && len(sub.Data) >= 4 {
		soundType = leUint32(sub.Data)
	}
	return creature, soundType
}

// SetRecordID assigns the NAME id of a record.
func SetRecordID(record *Record, id string) {
	record.SetSub("NAME", encodeZString(id))
}

// MeshPath returns a record's model path (MODL subrecord).
func MeshPath(record *Record) string { return record.ZString("MODL") }

// NumericIndex returns the INDX value keying SKIL and MGEF records.
func NumericIndex(record *Record) (uint32, bool) {
	sub := record.Sub("INDX")
	if sub == nil || len(sub.Data) < 4 {
		return 0, false
	}
	return leUint32(sub.Data), true
}

// CreatureScale returns the XSCL scale of a CREA record, or nil.
func CreatureScale(record *Record) *float32 {
	sub := record.Sub("XSCL")
	if sub == nil || len(sub.Data) < 4 {
		return nil
	}
	scale := leFloat32(sub.Data)
	return &scale
}

// DropDefaultCreatureScale removes a CREA scale equal to 1.0 and reports
// whether the record changed.
func DropDefaultCreatureScale(record *Record) bool {
	if scale := CreatureScale(record); scale != nil && *scale == 1.0 {
		return record.RemoveSub("XSCL")
	}
	return false
}
