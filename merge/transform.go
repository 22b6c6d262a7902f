package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alvazir/habasi/esp"
)

// Finalize runs the output-side transforms once every input is merged:
// moved instances travel, numeric kinds resort, editor noise drops off,
// grass mode filters, and reindexing renumbers owned references.
func (s *Store) Finalize() error {
	if err := s.applyMovedInstances(); err != nil {
		return err
	}
	s.resortIndexedKinds()
	s.dropDefaultCreatureScales()
	s.stripDeletedCellWater()
	if s.opts.Mode == ModeGrass {
		s.excludeNonGrassStatics()
		s.excludeInteriorAndEmptyCells()
	}
	s.pruneExcludedInfos()
	s.dropDeletedOwnedReferences()
	if s.opts.Reindex {
		s.reindexReferences()
	}
	return nil
}

// resortIndexedKinds keeps SKIL and MGEF in numeric order the way the
// engines expect them.
func (s *Store) resortIndexedKinds() {
	for _, tag := range []string{"SKIL", "MGEF"} {
		b, ok := s.buckets[tag]
		if !ok {
			continue
		}
		sort.SliceStable(b.entries, func(i, j int) bool {
			a, _ := esp.NumericIndex(b.entries[i].head)
			c, _ := esp.NumericIndex(b.entries[j].head)
			return a < c
		})
		for i, e := range b.entries {
			key, err := recordKey(e.head)
			if err == nil {
				b.index[key] = i
			}
		}
	}
}

func (s *Store) dropDefaultCreatureScales() {
	b, ok := s.buckets["CREA"]
	if !ok {
		return
	}
	for _, e := range b.entries {
		esp.DropDefaultCreatureScale(e.head)
		for _, variant := range e.variants {
			esp.DropDefaultCreatureScale(variant)
		}
	}
}

// stripDeletedCellWater clears water height and ambient light from deleted
// interior cells; the engines choke on leftovers.
func (s *Store) stripDeletedCellWater() {
	for _, e := range s.cells {
		if e.cell.Interior() && e.cell.Flags&0x20 != 0 {
			e.cell.WaterHeight = nil
			e.cell.Ambient = nil
		}
	}
}

func (s *Store) excludeNonGrassStatics() {
	b, ok := s.buckets["STAT"]
	if !ok {
		return
	}
	var removed []string
	kept := b.entries[:0]
	b.index = map[string]int{}
	for _, e := range b.entries {
		mesh := strings.ToLower(esp.MeshPath(e.head))
		if strings.HasPrefix(mesh, s.cfg.Guts.GrassMeshPrefix) {
			if key, err := recordKey(e.head); err == nil {
				b.index[key] = len(kept)
			}
			kept = append(kept, e)
			continue
		}
		removed = append(removed, fmt.Sprintf(
			"    Record STAT: %s was excluded from the result because it's not a grass static(mesh path %q doesn't start with %q)",
			e.head.ID(), esp.MeshPath(e.head), s.cfg.Guts.GrassMeshPrefix))
		s.stats.excluded("STAT")
	}
	b.entries = kept
	s.showRemovedRecords(removed, "\"grass\" mode and non-grass STAT")
}

func (s *Store) excludeInteriorAndEmptyCells() {
	var removed []string
	kept := s.cells[:0]
	s.intCells = map[string]int{}
	s.extCells = map[string]int{}
	for _, e := range s.cells {
		switch {
		case e.cell.Interior():
			removed = append(removed, fmt.Sprintf(
				"    Record CELL: %s was excluded from the result because it's an interior cell",
				e.cell.DisplayName()))
			s.stats.excluded("CELL")
		case len(e.refs) == 0:
			removed = append(removed, fmt.Sprintf(
				"    Record CELL: %s was excluded from the result because it's an empty cell",
				e.cell.DisplayName()))
			s.stats.excluded("CELL")
		default:
			s.extCells[gridKey(e.cell.Grid)] = len(kept)
			kept = append(kept, e)
		}
	}
	s.cells = kept
	s.showRemovedRecords(removed, "\"grass\" mode and interior/empty cell")
}

// dropDeletedOwnedReferences removes deleted instances the output itself
// owns; nothing outside the output can reference them.
func (s *Store) dropDeletedOwnedReferences() {
	for _, e := range s.cells {
		for key, ref := range e.refs {
			if ref.MastIndex == 0 && ref.Deleted {
				delete(e.refs, key)
			}
		}
	}
}

// reindexReferences renumbers owned references into one contiguous range
// starting at 1, in output cell order, reproducing the editor convention.
func (s *Store) reindexReferences() {
	refr := uint32(1)
	for _, e := range s.cells {
		refs := e.sortedRefs()
		newRefs := make(map[esp.RefKey]*esp.Reference, len(refs))
		for _, ref := range refs {
			if ref.MastIndex == 0 {
				ref.RefrIndex = refr
				refr++
			}
			newRefs[ref.Key()] = ref
		}
		e.refs = newRefs
	}
	s.log.Msg(1, "Output plugin %q: references reindexed", s.name)
}

// sortedRefs returns the cell's references in the stable output order.
func (e *cellEntry) sortedRefs() []*esp.Reference {
	refs := make([]*esp.Reference, 0, len(e.refs))
	for _, ref := range e.refs {
		refs = append(refs, ref)
	}
	sortReferences(refs)
	return refs
}
