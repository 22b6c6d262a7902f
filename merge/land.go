package merge

import (
	"fmt"
	"strings"

	"github.com/alvazir/habasi/esp"
)

// landEntry is one merged landscape: the winning decoded LAND plus the
// variant stack keep mode retains.
type landEntry struct {
	land     *esp.Land
	variants []*esp.Land
}

func (s *Store) ingestLtex(record *esp.Record, ps *pluginState) error {
	if ps.landSeen {
		return fmt.Errorf("plugin is corrupted, because LTEX record comes after LAND records")
	}
	ltex, err := esp.DecodeLtex(record)
	if err != nil {
		return err
	}
	// VTEX value n points at LTEX index n-1; value 0 is the default
	// texture, so both sides of the remap table are stored shifted by one.
	localVtex := uint16(ltex.Index) + 1
	idLow := strings.ToLower(ltex.ID)
	if idx, ok := s.ltexIndex[idLow]; ok {
		if _, dup := ps.vtex[localVtex]; dup {
			return fmt.Errorf("there is already a vtex pair for LTEX index %d in this plugin", ltex.Index)
		}
		ps.vtex[localVtex] = uint16(idx) + 1
		stored := s.ltexEntries[idx]
		storedView, err := esp.DecodeLtex(stored.head)
		if err != nil {
			return err
		}
		replaced := false
		if storedView.Flags != ltex.Flags {
			storedView.Flags = ltex.Flags
			replaced = true
		}
		if !strings.EqualFold(storedView.FileName, ltex.FileName) {
			storedView.FileName = ltex.FileName
			replaced = true
		}
		if replaced {
			stored.head = storedView.Encode()
			ps.stats.replaced("LTEX")
		} else {
			ps.stats.merged("LTEX")
		}
		return nil
	}
	globalIndex := len(s.ltexEntries)
	if _, dup := ps.vtex[localVtex]; dup {
		return fmt.Errorf("there is already a vtex pair for LTEX index %d in this plugin", ltex.Index)
	}
	ps.vtex[localVtex] = uint16(globalIndex) + 1
	ltex.Index = uint32(globalIndex)
	s.ltexIndex[idLow] = globalIndex
	s.ltexEntries = append(s.ltexEntries, &entry{head: ltex.Encode()})
	ps.stats.processed("LTEX")
	return nil
}

func (s *Store) ingestLand(record *esp.Record, ps *pluginState) error {
	ps.landSeen = true
	land, err := esp.DecodeLand(record)
	if err != nil {
		return err
	}
	if err := remapTextureIndices(land, ps.vtex); err != nil {
		return err
	}
	key := gridKey(land.Grid)
	idx, ok := s.landIndex[key]
	if !ok {
		s.landIndex[key] = len(s.lands)
		s.lands = append(s.lands, &landEntry{land: land})
		ps.stats.processed("LAND")
		return nil
	}
	e := s.lands[idx]
	if landsEqual(e.land, land) {
		if s.opts.Debug {
			e.stackLand(land)
		}
		ps.stats.duplicate("LAND")
		return nil
	}
	if s.opts.Mode.stacksVariants("LAND") || s.opts.Debug {
		e.stackLand(land)
	}
	e.land = land
	ps.stats.replaced("LAND")
	return nil
}

func (e *landEntry) stackLand(land *esp.Land) {
	if len(e.variants) == 0 {
		e.variants = append(e.variants, e.land)
	}
	e.variants = append(e.variants, land)
}

func remapTextureIndices(land *esp.Land, vtex map[uint16]uint16) error {
	for _, row := range land.Textures {
		for i, id := range row {
			if id == 0 {
				continue
			}
			remapped, ok := vtex[id]
			if !ok {
				return fmt.Errorf("there is no VTEX id %d in the plugin's texture table", id)
			}
			row[i] = remapped
		}
	}
	return nil
}

func landsEqual(a, b *esp.Land) bool {
	return a.Encode().Equal(b.Encode())
}
