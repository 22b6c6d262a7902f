package merge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alvazir/habasi/esp"
)

// outputLevel selects which dry-run/compare knobs apply to a write: the
// primary output or the secondary (groundcover) one.
type outputLevel int

const (
	levelPrimary outputLevel = iota
	levelSecondary
)

// WriteOutput compares the composed plugin with the previous file version
// and writes it unless nothing significant changed. It returns true when
// the file was (or would have been) rewritten.
func (s *Store) WriteOutput(name string, plugin *esp.Plugin, level outputLevel) (bool, error) {
	noCompare, dryRun := s.opts.NoCompare, s.opts.DryRun
	if level == levelSecondary {
		noCompare, dryRun = s.opts.NoCompareSecondary, s.opts.DryRunSecondary
	}
	newBytes := plugin.Encode()
	if _, err := os.Stat(name); err == nil {
		if !noCompare {
			oldBytes, err := os.ReadFile(name)
			if err != nil {
				return false, fmt.Errorf("failed to read previous output plugin %q: %w", name, err)
			}
			verdict, text, err := compareToPrevious(name, plugin, newBytes, oldBytes)
			if err != nil {
				return false, err
			}
			switch verdict {
			case compareEqual, compareMasterSizesOnly:
				s.log.Msg(0, "%s", text)
				return false, nil
			default:
				s.log.Msg(0, "%s", text)
			}
		}
	} else if dir := filepath.Dir(name); dir != "." && dir != "" {
		if _, err := os.Stat(dir); err != nil {
			if dryRun {
				s.log.Msg(0, "Output plugin directory %q would be created", dir)
			} else {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return false, fmt.Errorf("failed to create output plugin directory %q: %w", dir, err)
				}
				s.log.Msg(0, "Output plugin directory %q was created", dir)
			}
		}
	}
	if dryRun {
		if level == levelPrimary && s.opts.DryRunDismissStats {
			return true, nil
		}
		s.log.Msg(0, "Output plugin %q would be written", name)
		return true, nil
	}
	if err := os.WriteFile(name, newBytes, 0o644); err != nil {
		return false, fmt.Errorf("failed to write output plugin %q: %w", name, err)
	}
	s.log.Msg(0, "Output plugin %q was written", name)
	return true, nil
}
