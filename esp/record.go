package esp

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Subrecord is a tagged payload inside a record. Data is owned by the
// subrecord and treated as opaque unless a typed view decodes it.
type Subrecord struct {
	Tag  string
	Data []byte
}

// Record is the generic form every record passes through. Flags carries the
// engine's object flags (bit 5 set marks a deleted record); Unknown is the
// second header dword the engines ignore but expect preserved.
type Record struct {
	Tag     string
	Flags   uint32
	Unknown uint32
	Subs    []Subrecord
}

const deletedFlag = 0x20

// Deleted reports whether the record carries the engine's deleted flag.
func (r *Record) Deleted() bool { return r.Flags&deletedFlag != 0 }

// Sub returns the first subrecord with the given tag, or nil.
func (r *Record) Sub(tag string) *Subrecord {
	for i := range r.Subs {
		if r.Subs[i].Tag == tag {
			return &r.Subs[i]
		}
	}
	return nil
}

// HasSub reports whether any subrecord carries the given tag.
func (r *Record) HasSub(tag string) bool { return r.Sub(tag) != nil }

// RemoveSub drops every subrecord with the given tag and reports whether
// anything was removed.
func (r *Record) RemoveSub(tag string) bool {
	kept := r.Subs[:0]
	removed := false
	for _, sub := range r.Subs {
		if sub.Tag == tag {
			removed = true
			continue
		}
		kept = append(kept, sub)
	}
	r.Subs = kept
	return removed
}

// SetSub replaces the first subrecord with the given tag or appends a new
// one when absent.
func (r *Record) SetSub(tag string, data []byte) {
	if sub := r.Sub(tag); sub != nil {
		sub.Data = data
		return
	}
	r.Subs = append(r.Subs, Subrecord{Tag: tag, Data: data})
}

// ZString returns the subrecord payload with trailing NULs trimmed, or ""
// when the subrecord is absent.
func (r *Record) ZString(tag string) string {
	sub := r.Sub(tag)
	if sub == nil {
		return ""
	}
	return zstring(sub.Data)
}

// ID returns the record's string identifier: INAM for INFO records, the
// interior-cell name convention for CELL, NAME for everything else. The
// caller lowercases when building store keys.
func (r *Record) ID() string {
	if r.Tag == "INFO" {
		return r.ZString("INAM")
	}
	return r.ZString("NAME")
}

// Equal reports byte equality of two records including flags.
func (r *Record) Equal(other *Record) bool {
	if other == nil || r.Tag != other.Tag || r.Flags != other.Flags ||
		r.Unknown != other.Unknown || len(r.Subs) != len(other.Subs) {
		return false
	}
	for i := range r.Subs {
		if r.Subs[i].Tag != other.Subs[i].Tag || !bytes.Equal(r.Subs[i].Data, other.Subs[i].Data) {
			return false
		}
	}
	return true
}

// Clone deep-copies the record.
func (r *Record) Clone() *Record {
	dup := &Record{Tag: r.Tag, Flags: r.Flags, Unknown: r.Unknown}
	dup.Subs = make([]Subrecord, len(r.Subs))
	for i, sub := range r.Subs {
		dup.Subs[i] = Subrecord{Tag: sub.Tag, Data: append([]byte(nil), sub.Data...)}
	}
	return dup
}

func zstring(data []byte) string {
	return string(bytes.TrimRight(data, "\x00"))
}

func encodeZString(s string) []byte {
	return append([]byte(s), 0)
}

func leUint32(data []byte) uint32 { return binary.LittleEndian.Uint32(data) }

func leFloat32(data []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data))
}

func putUint32(v uint32) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return data
}

func putFloat32(v float32) []byte {
	return putUint32(math.Float32bits(v))
}
