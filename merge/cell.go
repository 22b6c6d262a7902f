package merge

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alvazir/habasi/esp"
)

// movedGrids remembers where a MVRF reference travels between exterior
// cells; the move is applied when the store flushes.
type movedGrids struct {
	oldGrid esp.Grid
	newGrid esp.Grid
}

// mergedPluginRefr maps a reference index local to a merged input onto the
// output's reference numbering.
type mergedPluginRefr struct {
	local  uint32
	global uint32
}

// mergedPluginMeta records, per merged input plugin, which references it
// contributed to a cell so later plugins can address them.
type mergedPluginMeta struct {
	nameLow string
	refs    []mergedPluginRefr
}

// cellEntry is one merged cell: the scalar part, the reference table keyed
// by cross-plugin identity, and the per-plugin contribution log.
type cellEntry struct {
	cell        *esp.Cell
	refs        map[esp.RefKey]*esp.Reference
	variants    []*esp.Cell
	pluginMetas []mergedPluginMeta
}

// ignoredRefError accumulates missing-reference warnings per source master.
type ignoredRefError struct {
	master         string
	firstEncounter string
	cellCount      int
	refCount       int
}

// sortReferences orders references by the stable key: moved references
// first, then persistent before temporary, then by master index (owned
// references, master 0, come last), then by reference index.
func sortReferences(refs []*esp.Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		aMoved, bMoved := a.MovedCell == nil, b.MovedCell == nil
		if aMoved != bMoved {
			return !aMoved
		}
		if a.Persistent != b.Persistent {
			return a.Persistent
		}
		aMast, bMast := sortMaster(a.MastIndex), sortMaster(b.MastIndex)
		if aMast != bMast {
			return aMast < bMast
		}
		return a.RefrIndex < b.RefrIndex
	})
}

func sortMaster(mast uint32) uint32 {
	if mast == 0 {
		return math.MaxUint32
	}
	return mast
}

func (s *Store) ingestCell(record *esp.Record, ps *pluginState) error {
	cell, err := esp.DecodeCell(record)
	if err != nil {
		return err
	}
	refs := cell.References
	ps.stats.InstancesProcessed += len(refs)
	if s.opts.Mode == ModeGrass {
		kept := refs[:0]
		for _, ref := range refs {
			if s.grassFiltered(ref.ID) {
				ps.stats.GrassFiltered++
				continue
			}
			kept = append(kept, ref)
		}
		refs = kept
	}
	sortReferences(refs)
	cell.References = nil

	e, existed := s.lookupCell(cell)
	if !existed {
		e = &cellEntry{cell: cell, refs: map[esp.RefKey]*esp.Reference{}}
		s.registerCell(e)
		ps.stats.processed("CELL")
	} else {
		s.mergeCellScalars(e, cell)
		ps.stats.merged("CELL")
	}

	meta := mergedPluginMeta{nameLow: ps.info.nameLow}
	cellShown, refShown := false, false
	for _, ref := range refs {
		switch {
		case ref.MastIndex == 0:
			if s.refr == math.MaxUint32 {
				return fmt.Errorf("limit of %d references per plugin reached, split the list into smaller parts", uint32(math.MaxUint32))
			}
			s.refr++
			s.addOwnedReference(e, ref, s.refr)
			meta.refs = append(meta.refs, mergedPluginRefr{local: ref.RefrIndex, global: s.refr})
			s.containsNonExternalRefs = true
		default:
			merged, isMerged := ps.mergedMaster(ref.MastIndex)
			if !isMerged {
				if s.opts.StripMasters {
					s.log.Msg(0, "Output plugin %q: masters will not be stripped due to encountering external reference", s.name)
					s.opts.StripMasters = false
				}
				if err := s.addExternalReference(e, ref, ps); err != nil {
					return err
				}
				continue
			}
			if !existed {
				// The merged master never produced this cell at all.
				if err := s.missingRef(ps, e.cell, merged, 0, &ps.cellErrors, &cellShown); err != nil {
					return err
				}
				continue
			}
			global, found := globalRefr(e, merged, ref.RefrIndex)
			if !found {
				if err := s.missingRef(ps, e.cell, merged, ref.RefrIndex, &ps.refErrors, &refShown); err != nil {
					return err
				}
				continue
			}
			s.modifyOwnedReference(e, ref, global)
		}
	}
	e.pluginMetas = append(e.pluginMetas, meta)
	return nil
}

func (s *Store) grassFiltered(id string) bool {
	idLow := strings.ToLower(id)
	for _, filtered := range s.cfg.Advanced.GrassFilter {
		if idLow == filtered {
			return true
		}
	}
	return false
}

func (s *Store) lookupCell(cell *esp.Cell) (*cellEntry, bool) {
	if cell.Interior() {
		if idx, ok := s.intCells[strings.ToLower(cell.Name)]; ok {
			return s.cells[idx], true
		}
		return nil, false
	}
	if idx, ok := s.extCells[gridKey(cell.Grid)]; ok {
		return s.cells[idx], true
	}
	return nil, false
}

func (s *Store) registerCell(e *cellEntry) {
	idx := len(s.cells)
	s.cells = append(s.cells, e)
	if e.cell.Interior() {
		s.intCells[strings.ToLower(e.cell.Name)] = idx
	} else {
		s.extCells[gridKey(e.cell.Grid)] = idx
	}
}

// mergeCellScalars folds a later cell's scalar part over the stored one.
// Flags, name, data and region always follow the newcomer; map color, water
// height and ambient light only overwrite when the newcomer carries them.
func (s *Store) mergeCellScalars(e *cellEntry, cell *esp.Cell) {
	old := e.cell
	changed := old.Flags != cell.Flags || old.Name != cell.Name ||
		old.DataFlags != cell.DataFlags || old.Grid != cell.Grid ||
		!equalStringPtr(old.Region, cell.Region) ||
		(cell.MapColor != nil && string(old.MapColor) != string(cell.MapColor)) ||
		(cell.WaterHeight != nil && !equalFloatPtr(old.WaterHeight, cell.WaterHeight)) ||
		(cell.Ambient != nil && string(old.Ambient) != string(cell.Ambient))
	if changed || s.opts.Debug {
		if len(e.variants) == 0 {
			e.variants = append(e.variants, snapshotCell(old))
		}
		e.variants = append(e.variants, snapshotCell(cell))
	}
	if !changed {
		return
	}
	old.Flags = cell.Flags
	old.Name = cell.Name
	old.DataFlags = cell.DataFlags
	old.Grid = cell.Grid
	old.Region = cell.Region
	if cell.MapColor != nil {
		old.MapColor = cell.MapColor
	}
	if cell.WaterHeight != nil {
		old.WaterHeight = cell.WaterHeight
	}
	if cell.Ambient != nil {
		old.Ambient = cell.Ambient
	}
	if len(cell.Extra) > 0 {
		old.Extra = cell.Extra
	}
}

func snapshotCell(cell *esp.Cell) *esp.Cell {
	dup := *cell
	dup.References = nil
	return &dup
}

func equalStringPtr(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func equalFloatPtr(a, b *float32) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// addOwnedReference installs a reference owned by the output plugin under a
// freshly reserved index.
func (s *Store) addOwnedReference(e *cellEntry, ref *esp.Reference, refr uint32) {
	newRef := ref.Clone()
	newRef.MastIndex = 0
	newRef.RefrIndex = refr
	normalizeReference(newRef, false)
	e.refs[esp.RefKey{MastIndex: 0, RefrIndex: refr}] = newRef
}

// addExternalReference installs a reference pointing into a master outside
// the merged set, remapping its master index through the output header.
func (s *Store) addExternalReference(e *cellEntry, ref *esp.Reference, ps *pluginState) error {
	global, ok := ps.resolveMaster(ref.MastIndex)
	if !ok {
		return fmt.Errorf("failed to find local master id for reference \"%d\" with master index %d",
			ref.RefrIndex, ref.MastIndex)
	}
	newRef := ref.Clone()
	newRef.MastIndex = global
	normalizeReference(newRef, true)
	e.refs[newRef.Key()] = newRef
	return nil
}

// modifyOwnedReference overwrites an already merged reference addressed
// through a merged master's numbering.
func (s *Store) modifyOwnedReference(e *cellEntry, ref *esp.Reference, refr uint32) {
	key := esp.RefKey{MastIndex: 0, RefrIndex: refr}
	if ref.MovedCell != nil && !e.cell.Interior() {
		s.movedRefs[key] = movedGrids{oldGrid: e.cell.Grid, newGrid: *ref.MovedCell}
	} else {
		delete(s.movedRefs, key)
	}
	newRef := ref.Clone()
	newRef.MastIndex = 0
	newRef.RefrIndex = refr
	normalizeReference(newRef, true)
	e.refs[key] = newRef
}

// normalizeReference drops the payload noise the editors leave behind:
// default counts and scales, scales on deleted instances, moved markers on
// deleted instances, and the temporary flag on travel doors.
func normalizeReference(ref *esp.Reference, replacing bool) {
	if ref.Count != nil && *ref.Count == 1 {
		ref.Count = nil
	}
	if ref.Scale != nil && (*ref.Scale == 1.0 || (replacing && ref.Deleted)) {
		ref.Scale = nil
	}
	if ref.HasDestination {
		ref.Persistent = true
	}
	if replacing && ref.Deleted {
		ref.MovedCell = nil
	}
}

// globalRefr resolves a merged master's local reference index through the
// cell's contribution log.
func globalRefr(e *cellEntry, merged *localMergedMaster, local uint32) (uint32, bool) {
	for i := range e.pluginMetas {
		if e.pluginMetas[i].nameLow != merged.nameLow {
			continue
		}
		for _, r := range e.pluginMetas[i].refs {
			if r.local == local {
				return r.global, true
			}
		}
		return 0, false
	}
	return 0, false
}

func (s *Store) missingRef(ps *pluginState, cell *esp.Cell, merged *localMergedMaster,
	refrIndex uint32, errors *[]*ignoredRefError, shown *bool) error {
	var b strings.Builder
	if s.opts.NoIgnoreErrors {
		b.WriteString("Merged master ")
	} else {
		b.WriteString("    Ignored error: merged master ")
	}
	fmt.Fprintf(&b, "%q doesn't contain ", merged.nameLow)
	if refrIndex != 0 {
		fmt.Fprintf(&b, "reference \"%d\" in ", refrIndex)
	}
	fmt.Fprintf(&b, "cell %q", cell.DisplayName())
	text := b.String()
	if s.opts.NoIgnoreErrors {
		return fmt.Errorf("%s", text)
	}
	for _, ignored := range *errors {
		if ignored.master != merged.nameLow {
			continue
		}
		if !*shown {
			ignored.cellCount++
			if !s.opts.NoShowMissingRefs {
				s.log.Msg(2, "%s", text)
			}
			*shown = true
		} else if !s.opts.NoShowMissingRefs && s.opts.ShowAllMissingRefs {
			s.log.Msg(2, "%s", text)
		}
		ignored.refCount++
		return nil
	}
	if !s.opts.NoShowMissingRefs {
		s.log.Msg(2, "%s", text)
	}
	*shown = true
	*errors = append(*errors, &ignoredRefError{
		master:         merged.nameLow,
		firstEncounter: text,
		cellCount:      1,
		refCount:       1,
	})
	return nil
}

func (s *Store) showIgnoredRefErrors(errors []*ignoredRefError, pluginName string, cellLevel bool) {
	if len(errors) == 0 {
		return
	}
	subject := "cell reference(s)"
	if cellLevel {
		subject = "cell(s)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Warning: probably outdated plugin %q contains modified %s missing from master(s):", pluginName, subject)
	for _, ignored := range errors {
		fmt.Fprintf(&b, "\n  Master %q(%d cell(s), %d ref(s)), first error encountered was(check log for more):\n%s",
			ignored.master, ignored.cellCount, ignored.refCount, ignored.firstEncounter)
	}
	s.log.Msg(0, "%s", b.String())
}

// applyMovedInstances relocates MVRF references between exterior cells once
// every input is merged.
func (s *Store) applyMovedInstances() error {
	for key, grids := range s.movedRefs {
		oldIdx, ok := s.extCells[gridKey(grids.oldGrid)]
		if !ok {
			return fmt.Errorf("failed to find source cell %v for moved instance", grids.oldGrid)
		}
		newIdx, ok := s.extCells[gridKey(grids.newGrid)]
		if !ok {
			return fmt.Errorf("failed to find destination cell %v for moved instance", grids.newGrid)
		}
		ref, ok := s.cells[oldIdx].refs[key]
		if !ok {
			return fmt.Errorf("failed to find moved instance %v in source cell", key)
		}
		delete(s.cells[oldIdx].refs, key)
		if _, taken := s.cells[newIdx].refs[key]; taken {
			return fmt.Errorf("destination cell already holds moved instance %v", key)
		}
		moved := ref.Clone()
		moved.MovedCell = nil
		s.cells[newIdx].refs[key] = moved
	}
	return nil
}
