package merge

import (
	"fmt"

	"github.com/alvazir/habasi/esp"
)

// emitOrder is the record-kind order of composed outputs: object
// definitions first, then landscape, then dialogue, cells last.
var emitOrder = []string{
	"GMST", "GLOB", "CLAS", "FACT", "RACE", "SOUN", "SNDG", "SKIL", "MGEF",
	"SCPT", "REGN", "BSGN", "SSCR", "LTEX", "SPEL", "STAT", "DOOR", "MISC",
	"WEAP", "CONT", "CREA", "BODY", "LIGH", "ENCH", "NPC_", "ARMO", "CLOT",
	"REPA", "ACTI", "APPA", "LOCK", "PROB", "INGR", "BOOK", "ALCH", "LEVI",
	"LEVC", "LAND", "PGRD",
}

// Compose serializes the merged store into an output plugin. Finalize must
// have run first.
func (s *Store) Compose() (*esp.Plugin, error) {
	var records []*esp.Record
	for _, tag := range emitOrder {
		switch tag {
		case "LTEX":
			records = s.emitEntries(records, "LTEX", s.ltexEntries, s.opts.Mode)
		case "LAND":
			records = s.emitLands(records)
		case "LEVI", "LEVC":
			if b, ok := s.buckets[tag]; ok {
				records = s.emitEntries(records, tag, b.entries, s.opts.Mode.leveledMode())
			}
		default:
			if b, ok := s.buckets[tag]; ok {
				records = s.emitEntries(records, tag, b.entries, s.opts.Mode)
			}
		}
	}
	records = s.emitDialogues(records)
	records = s.emitCells(records)

	masters := append([]esp.Master(nil), s.masters...)
	if s.opts.StripMasters {
		s.log.Msg(1, "Output plugin %q: master subrecords stripped from header", s.name)
		masters = nil
	}
	author := s.cfg.Guts.HeaderAuthor
	header := &esp.Header{
		Version:     float32(s.cfg.Guts.HeaderVersion),
		Author:      author,
		Description: fmt.Sprintf("%s%d%s", s.cfg.Guts.HeaderDescriptionPrefix, len(s.plugins), s.cfg.Guts.HeaderDescriptionSuffix),
		NumRecords:  uint32(len(records)),
		Masters:     masters,
	}
	s.stats.result("TES3")
	s.stats.ResultPlugins++
	plugin := &esp.Plugin{Records: append([]*esp.Record{header.Encode()}, records...)}
	return plugin, nil
}

func (s *Store) emitEntries(records []*esp.Record, tag string, entries []*entry, mode Mode) []*esp.Record {
	var removed []string
	for _, e := range entries {
		if s.opts.ExcludeDeletedRecords && e.head.Deleted() {
			removed = append(removed, fmt.Sprintf(
				"    Record %s: %q was excluded from the result due to \"DELETED\" flag", tag, e.head.ID()))
			s.stats.excluded(tag)
			continue
		}
		variants := s.variantsFor(tag, e, mode)
		for _, record := range variants {
			records = append(records, record)
			s.stats.result(tag)
		}
	}
	if s.opts.ExcludeDeletedRecords {
		s.showRemovedRecords(removed, "\"exclude_deleted_records\" and DELETED record flag")
	}
	return records
}

func (s *Store) emitLands(records []*esp.Record) []*esp.Record {
	for _, e := range s.lands {
		variants := []*esp.Land{e.land}
		if len(e.variants) > 0 && (s.opts.Debug || s.opts.Mode.stacksVariants("LAND")) {
			variants = e.variants
		}
		for _, land := range variants {
			record := land.Encode()
			if s.opts.ExcludeDeletedRecords && record.Deleted() {
				s.stats.excluded("LAND")
				continue
			}
			records = append(records, record)
			s.stats.result("LAND")
		}
	}
	return records
}

// emitDialogues writes Journal dialogues with their INFOs first, then the
// rest, each DIAL immediately followed by its INFO children.
func (s *Store) emitDialogues(records []*esp.Record) []*esp.Record {
	var journal, other []*esp.Record
	for _, e := range s.dials {
		target := &other
		if esp.DialType(e.dial) == esp.DialogueJournal {
			target = &journal
		}
		*target = append(*target, e.dial)
		s.stats.result("DIAL")
		for _, info := range e.infos {
			*target = append(*target, info)
			s.stats.result("INFO")
		}
	}
	records = append(records, journal...)
	return append(records, other...)
}

func (s *Store) emitCells(records []*esp.Record) []*esp.Record {
	for _, e := range s.cells {
		if s.opts.ExcludeDeletedRecords && e.cell.Flags&0x20 != 0 {
			s.stats.excluded("CELL")
			continue
		}
		cell := *e.cell
		cell.References = e.sortedRefs()
		for _, variant := range s.cellVariants(e) {
			records = append(records, variant.Encode())
			s.stats.result("CELL")
		}
		records = append(records, cell.Encode())
		s.stats.result("CELL")
		s.stats.InstancesResult += len(cell.References)
	}
	return records
}

// cellVariants returns the scalar-only snapshots emitted ahead of the
// merged cell in keep and debug modes.
func (s *Store) cellVariants(e *cellEntry) []*esp.Cell {
	if len(e.variants) == 0 {
		return nil
	}
	if s.opts.Debug {
		return e.variants
	}
	if s.opts.Mode.stacksVariants("CELL") {
		// The last snapshot duplicates the merged scalar part.
		return e.variants[:len(e.variants)-1]
	}
	return nil
}
