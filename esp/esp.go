// Package esp reads and writes TES3 plugin files.
//
// A plugin is a flat sequence of records, each record a flat sequence of
// subrecords. The package keeps every subrecord it does not understand
// byte-for-byte, so records that are never mutated round-trip identically.
// Typed views (Header, Cell, Land, ...) decode only the fields the merger
// needs and re-encode them back into the generic record form.
package esp

import (
	"errors"
	"fmt"
)

// Record tags the reader accepts: the TES3 record set. The order of this
// list is not the output emission order; the merge package decides that.
var KnownTags = []string{
	"TES3", "GMST", "GLOB", "CLAS", "FACT", "RACE", "SOUN", "SNDG", "SKIL",
	"MGEF", "SCPT", "REGN", "BSGN", "SSCR", "LTEX", "SPEL", "STAT", "DOOR",
	"MISC", "WEAP", "CONT", "CREA", "BODY", "LIGH", "ENCH", "NPC_", "ARMO",
	"CLOT", "REPA", "ACTI", "APPA", "LOCK", "PROB", "INGR", "BOOK", "ALCH",
	"LEVI", "LEVC", "CELL", "LAND", "PGRD", "DIAL", "INFO",
}

var knownTagSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(KnownTags))
	for _, tag := range KnownTags {
		m[tag] = struct{}{}
	}
	return m
}()

// IsKnownTag reports whether tag belongs to the TES3 record set.
func IsKnownTag(tag string) bool {
	_, ok := knownTagSet[tag]
	return ok
}

// ErrUnknownTag marks a record kind outside the TES3 set. The caller decides
// whether to skip the whole plugin or abort.
var ErrUnknownTag = errors.New("unknown record tag")

// UnknownTagError carries the offending tag so the caller can match it
// against the configured ignore list.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown record tag %q", e.Tag)
}

func (e *UnknownTagError) Unwrap() error { return ErrUnknownTag }

// ErrCorrupted marks structural corruption the reader cannot recover from.
var ErrCorrupted = errors.New("plugin is corrupted")
