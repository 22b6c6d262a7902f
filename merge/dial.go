package merge

import (
	"fmt"
	"strings"

	"github.com/alvazir/habasi/esp"
)

// dialEntry groups a DIAL record with the INFO records under it, in load
// order. excluded marks INFO slots removed by the keep-only-last rule.
type dialEntry struct {
	dial      *esp.Record
	infos     []*esp.Record
	infoIndex map[string]int
	excluded  map[int]string
}

func (s *Store) ingestDial(record *esp.Record, ps *pluginState) error {
	idLow := strings.ToLower(record.ID())
	if idx, ok := s.dialIndex[idLow]; ok {
		e := s.dials[idx]
		if e.dial.Equal(record) {
			ps.stats.duplicate("DIAL")
		} else {
			if esp.DialType(e.dial) != esp.DialType(record) {
				// The surviving DIAL's type wins. Stored INFOs of the old
				// type either get retyped (--force-dial-type) or dropped
				// with a warning; the engines reject mixed groups.
				if err := s.retireMismatchedInfos(e, esp.DialType(record), ps); err != nil {
					return err
				}
			}
			e.dial = record
			ps.stats.replaced("DIAL")
		}
		ps.activeDial = e
		return nil
	}
	e := &dialEntry{dial: record, infoIndex: map[string]int{}, excluded: map[int]string{}}
	s.dialIndex[idLow] = len(s.dials)
	s.dials = append(s.dials, e)
	ps.activeDial = e
	ps.stats.processed("DIAL")
	return nil
}

func (s *Store) retireMismatchedInfos(e *dialEntry, dialogueType int, ps *pluginState) error {
	if s.opts.ForceDialType {
		for _, info := range e.infos {
			if err := esp.SetInfoType(info, dialogueType); err != nil {
				return err
			}
		}
		return nil
	}
	kept := e.infos[:0]
	excluded := map[int]string{}
	for i, info := range e.infos {
		infoType, err := esp.InfoType(info)
		if err != nil {
			return err
		}
		if infoType != dialogueType {
			s.log.Msg(0, "Warning: INFO %q dropped because dialogue %q changed type; use --force-dial-type to retype instead",
				info.ID(), e.dial.ID())
			delete(e.infoIndex, info.ID())
			ps.stats.excluded("INFO")
			continue
		}
		if reason, ok := e.excluded[i]; ok {
			excluded[len(kept)] = reason
		}
		kept = append(kept, info)
	}
	e.infos = kept
	// Excluded markers refer to positions that may have shifted; rebuild.
	e.excluded = excluded
	e.infoIndex = map[string]int{}
	for i, info := range e.infos {
		e.infoIndex[info.ID()] = i
	}
	return nil
}

func (s *Store) ingestInfo(record *esp.Record, ps *pluginState) error {
	e := ps.activeDial
	if e == nil {
		return fmt.Errorf("failed to get dialogue for info record %q", record.ID())
	}
	infoType, err := esp.InfoType(record)
	if err != nil {
		return err
	}
	if infoType != esp.DialType(e.dial) && !record.Deleted() {
		if s.opts.ForceDialType {
			if err := esp.SetInfoType(record, esp.DialType(e.dial)); err != nil {
				return err
			}
			s.log.Msg(1, "    INFO %q: type forced to match dialogue %q", record.ID(), e.dial.ID())
		} else {
			return fmt.Errorf("%q info record's kind is different to %q dialogue's",
				record.ID(), e.dial.ID())
		}
	}
	id := record.ID()
	next := len(e.infos)
	if prev, ok := e.infoIndex[id]; ok {
		if e.infos[prev].Equal(record) {
			ps.stats.duplicate("INFO")
			return nil
		}
		if reason, special := s.keepOnlyLast(id, e.dial.ID()); special {
			// Exclude every earlier instance; only the newest survives.
			for i, info := range e.infos {
				if info.ID() == id {
					if _, done := e.excluded[i]; !done {
						e.excluded[i] = reason
						ps.stats.excluded("INFO")
					}
				}
			}
		}
		e.infoIndex[id] = next
		ps.stats.processed("INFO")
	} else {
		e.infoIndex[id] = next
		ps.stats.processed("INFO")
	}
	e.infos = append(e.infos, record)
	return nil
}

func (s *Store) keepOnlyLast(infoID, dialID string) (string, bool) {
	dialLow := strings.ToLower(dialID)
	for _, rule := range s.cfg.Advanced.KeepOnlyLastInfoIDs {
		if rule.ID == infoID && strings.ToLower(rule.Topic) == dialLow {
			return rule.Reason, true
		}
	}
	return "", false
}

// pruneExcludedInfos drops the INFO instances the keep-only-last rule
// retired, logging each with its configured reason.
func (s *Store) pruneExcludedInfos() {
	var removed []string
	for _, e := range s.dials {
		if len(e.excluded) == 0 {
			continue
		}
		kept := e.infos[:0]
		for i, info := range e.infos {
			if reason, excluded := e.excluded[i]; excluded {
				removed = append(removed, fmt.Sprintf(
					"    Record INFO: non-last instance of %q from DIAL %q was excluded from the result\n      Reason: %s",
					info.ID(), e.dial.ID(), reason))
				continue
			}
			kept = append(kept, info)
		}
		e.infos = kept
		e.excluded = map[int]string{}
	}
	s.showRemovedRecords(removed, "keep_only_last_info_ids")
}

func (s *Store) showRemovedRecords(removed []string, reason string) {
	if len(removed) == 0 {
		return
	}
	s.log.Msg(2, "Output plugin %q: %d record(s) excluded due to %s:\n%s",
		s.name, len(removed), reason, strings.Join(removed, "\n"))
}
