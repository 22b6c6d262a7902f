// Package merge is the core engine: it consumes plugins in load order,
// applies the per-kind override rules, fuses mergeable records, rewrites
// cross-plugin references and composes the output plugins.
package merge

import "fmt"

// Mode selects how records that appear in more than one input are fused.
type Mode int

const (
	// ModeKeep stacks every distinct variant of mergeable kinds so a
	// downstream merger sees them all.
	ModeKeep Mode = iota
	// ModeKeepWithoutLands is keep, except LAND records follow last-writer-wins.
	ModeKeepWithoutLands
	// ModeReplace keeps the last variant of everything except leveled lists.
	ModeReplace
	// ModeCompleteReplace keeps the last variant of everything.
	ModeCompleteReplace
	// ModeGrass is complete_replace restricted to groundcover content.
	ModeGrass
)

var modeNames = map[Mode]string{
	ModeKeep:             "keep",
	ModeKeepWithoutLands: "keep_without_lands",
	ModeReplace:          "replace",
	ModeCompleteReplace:  "complete_replace",
	ModeGrass:            "grass",
}

func (m Mode) String() string { return modeNames[m] }

// ParseMode resolves a mode token; the bool reports whether the token was a
// mode at all.
func ParseMode(token string) (Mode, bool) {
	for mode, name := range modeNames {
		if name == token {
			return mode, true
		}
	}
	return ModeKeep, false
}

// stacksVariants reports whether the mode accumulates variants for the
// given record tag instead of replacing.
func (m Mode) stacksVariants(tag string) bool {
	switch m {
	case ModeKeep:
		return true
	case ModeKeepWithoutLands:
		return tag != "LAND"
	default:
		return false
	}
}

// leveledMode returns the fusion mode for leveled lists: they stay
// mergeable in every mode short of complete_replace.
func (m Mode) leveledMode() Mode {
	if m == ModeCompleteReplace {
		return ModeCompleteReplace
	}
	return ModeKeep
}

func (m Mode) validate() error {
	if _, ok := modeNames[m]; !ok {
		return fmt.Errorf("unknown merge mode %d", int(m))
	}
	return nil
}
