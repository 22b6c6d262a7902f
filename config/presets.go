package config

// PresetsActive reports whether any preset flag was given; the preset lists
// then run ahead of any --merge lists, which are kept.
func (c *Cfg) PresetsActive() bool {
	return c.PresetCheckReferences || c.PresetTurnNormalGrass || c.PresetMergeLoadOrder
}

// PresetLists composes the merge lists a preset combination stands for.
// Later presets override earlier ones the way the original tool resolves
// them: -O beats -T beats -C, with the weaker presets contributing extra
// tokens to the winner.
func (c *Cfg) PresetLists() [][]string {
	if !c.PresetsActive() {
		return nil
	}
	var lists [][]string
	if c.PresetCheckReferences {
		lists = [][]string{clone(c.Guts.PresetCheckReferences)}
	}
	if c.PresetTurnNormalGrass {
		list := clone(c.Guts.PresetTurnNormalGrass)
		if c.PresetCheckReferences {
			list = append(list, c.Guts.PresetTurnNormalGrassAddWithCheckReferences...)
		}
		lists = [][]string{list}
	}
	if c.PresetMergeLoadOrder {
		list := clone(c.Guts.PresetMergeLoadOrder)
		if c.PresetCheckReferences {
			list = append(list, c.Guts.PresetMergeLoadOrderAddWithCheckReferences...)
		}
		if c.PresetTurnNormalGrass {
			list = append(list, c.Guts.PresetMergeLoadOrderAddWithTurnNormalGrass...)
		}
		lists = [][]string{list}
	}
	return lists
}

func clone(s []string) []string { return append([]string(nil), s...) }
