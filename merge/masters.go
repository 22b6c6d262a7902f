package merge

import (
	"fmt"
	"strings"

	"github.com/alvazir/habasi/esp"
)

// localMaster maps a master index of the plugin being read to its slot in
// the output header.
type localMaster struct {
	localID  uint32
	globalID uint32
}

// localMergedMaster marks a master of the plugin being read that is itself
// part of the merged set; its references collapse into the output.
type localMergedMaster struct {
	localID uint32
	nameLow string
}

func (s *Store) ingestHeader(record *esp.Record, ps *pluginState) error {
	header, err := esp.DecodeHeader(record)
	if err != nil {
		return err
	}
	for i, master := range header.Masters {
		localID := uint32(i + 1)
		nameLow := strings.ToLower(master.Name)
		if s.isMergedPlugin(nameLow) {
			ps.mergedMasters = append(ps.mergedMasters, localMergedMaster{localID: localID, nameLow: nameLow})
			continue
		}
		globalID, ok := s.globalMasters[nameLow]
		if !ok {
			s.masters = append(s.masters, esp.Master{Name: master.Name, Size: master.Size})
			globalID = uint32(len(s.masters))
			s.globalMasters[nameLow] = globalID
		} else {
			// Refresh the recorded size to the latest one seen.
			slot := int(globalID) - 1
			if slot < 0 || slot >= len(s.masters) {
				return fmt.Errorf("master %q resolves outside the output master table", master.Name)
			}
			if s.masters[slot].Size != master.Size {
				s.masters[slot].Size = master.Size
			}
		}
		ps.masters = append(ps.masters, localMaster{localID: localID, globalID: globalID})
	}
	ps.stats.merged("TES3")
	return nil
}

func (s *Store) isMergedPlugin(nameLow string) bool {
	for _, plugin := range s.plugins {
		if plugin.nameLow == nameLow {
			return true
		}
	}
	return false
}

// resolveMaster translates a plugin-local master index into the output
// header's master index.
func (ps *pluginState) resolveMaster(localID uint32) (uint32, bool) {
	for _, master := range ps.masters {
		if master.localID == localID {
			return master.globalID, true
		}
	}
	return 0, false
}

// mergedMaster returns the merged-set master a local index points at, when
// it does.
func (ps *pluginState) mergedMaster(localID uint32) (*localMergedMaster, bool) {
	for i := range ps.mergedMasters {
		if ps.mergedMasters[i].localID == localID {
			return &ps.mergedMasters[i], true
		}
	}
	return nil, false
}
