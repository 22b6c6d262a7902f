package merge

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alvazir/habasi/esp"
)

// GroundcoverProbe answers whether a mesh exists and carries the
// groundcover marker in its root node. Implemented by the assets package.
type GroundcoverProbe interface {
	IsGroundcover(mesh string) (exists bool, groundcover bool, err error)
}

// SecondaryName derives the groundcover twin's file name from the primary
// output name.
func SecondaryName(primary, suffix string) string {
	ext := filepath.Ext(primary)
	return strings.TrimSuffix(primary, ext) + suffix
}

// PartitionGrass moves instances of groundcover-marked statics out of the
// primary store and composes the secondary groundcover plugin. It must run
// after Finalize and before Compose.
func (s *Store) PartitionGrass(probe GroundcoverProbe) (*esp.Plugin, error) {
	grassStats, err := s.groundcoverStatics(probe)
	if err != nil {
		return nil, err
	}
	if len(grassStats) == 0 {
		s.log.Msg(1, "Output plugin %q: no groundcover statics found, secondary plugin is empty", s.name)
	}
	var records []*esp.Record
	usedStats := map[string]bool{}
	var cells []*esp.Cell
	refr := uint32(1)
	for _, e := range s.cells {
		if e.cell.Interior() {
			continue
		}
		var moved []*esp.Reference
		for key, ref := range e.refs {
			if ref.MastIndex != 0 || ref.Deleted {
				continue
			}
			idLow := strings.ToLower(ref.ID)
			if _, ok := grassStats[idLow]; !ok {
				continue
			}
			delete(e.refs, key)
			grass := ref.Clone()
			grass.MastIndex = 0
			grass.Persistent = false
			moved = append(moved, grass)
			usedStats[idLow] = true
		}
		if len(moved) == 0 {
			continue
		}
		sortReferences(moved)
		for _, ref := range moved {
			ref.RefrIndex = refr
			refr++
		}
		twin := snapshotCell(e.cell)
		twin.References = moved
		cells = append(cells, twin)
	}
	for _, e := range s.statEntries() {
		idLow := strings.ToLower(e.head.ID())
		if usedStats[idLow] {
			records = append(records, e.head.Clone())
		}
	}
	instances := 0
	for _, cell := range cells {
		records = append(records, cell.Encode())
		instances += len(cell.References)
	}
	header := &esp.Header{
		Version:     float32(s.cfg.Guts.HeaderVersion),
		Author:      s.cfg.Guts.HeaderAuthor + s.cfg.Guts.TNGHeaderAuthorAppend,
		Description: s.cfg.Guts.TNGHeaderDescriptionGroundcover,
		NumRecords:  uint32(len(records)),
	}
	s.log.Msg(1, "Output plugin %q: %d groundcover instance(s) moved to the secondary plugin",
		s.name, instances)
	return &esp.Plugin{Records: append([]*esp.Record{header.Encode()}, records...)}, nil
}

// groundcoverStatics maps the lowercased ids of STATs whose mesh carries
// the groundcover marker.
func (s *Store) groundcoverStatics(probe GroundcoverProbe) (map[string]struct{}, error) {
	grass := map[string]struct{}{}
	for _, e := range s.statEntries() {
		mesh := esp.MeshPath(e.head)
		if mesh == "" {
			continue
		}
		exists, groundcover, err := probe.IsGroundcover(mesh)
		if err != nil {
			return nil, fmt.Errorf("failed to probe mesh %q: %w", mesh, err)
		}
		if !exists {
			s.log.Msg(2, "    Mesh %q of STAT %q not found in loose files or archives", mesh, e.head.ID())
			continue
		}
		if groundcover {
			grass[strings.ToLower(e.head.ID())] = struct{}{}
		}
	}
	return grass, nil
}

func (s *Store) statEntries() []*entry {
	b, ok := s.buckets["STAT"]
	if !ok {
		return nil
	}
	return b.entries
}
