package merge

import (
	"fmt"
	"strings"

	"github.com/alvazir/habasi/config"
	"github.com/alvazir/habasi/esp"
)

// simpleTags never stack variants outside debug mode: the engines treat
// them strictly last-writer-wins, so keeping old variants only bloats the
// output.
var simpleTags = map[string]struct{}{
	"GMST": {}, "GLOB": {}, "FACT": {}, "SCPT": {}, "REGN": {}, "SSCR": {}, "PGRD": {},
}

// entry is one slot of the override register: the winning record plus the
// variant stack kept for mergeable kinds.
type entry struct {
	head     *esp.Record
	variants []*esp.Record
}

func (e *entry) stack(record *esp.Record) {
	if len(e.variants) == 0 {
		e.variants = append(e.variants, e.head)
	}
	e.variants = append(e.variants, record)
}

type bucket struct {
	entries []*entry
	index   map[string]int
}

func newBucket() *bucket { return &bucket{index: map[string]int{}} }

// pluginInfo identifies one merged input plugin.
type pluginInfo struct {
	name    string
	nameLow string
	path    string
}

// pluginState is the per-plugin bookkeeping reset for every input.
type pluginState struct {
	info          pluginInfo
	masters       []localMaster
	mergedMasters []localMergedMaster
	vtex          map[uint16]uint16
	activeDial    *dialEntry
	landSeen      bool
	cellErrors    []*ignoredRefError
	refErrors     []*ignoredRefError
	stats         *Stats
}

// Store is the in-memory merge target of one output plugin: the override
// register, the master table, the cell/dialogue trees and the counters.
type Store struct {
	cfg  *config.Cfg
	log  *config.Logger
	opts *ListOptions
	name string

	masters       []esp.Master
	globalMasters map[string]uint32

	buckets map[string]*bucket

	ltexEntries []*entry
	ltexIndex   map[string]int

	lands     []*landEntry
	landIndex map[string]int

	cells     []*cellEntry
	intCells  map[string]int
	extCells  map[string]int
	movedRefs map[esp.RefKey]movedGrids

	dials     []*dialEntry
	dialIndex map[string]int

	plugins []pluginInfo

	refr                    uint32
	containsNonExternalRefs bool

	stats *Stats
}

// NewStore creates an empty store for the named output under the given
// options.
func NewStore(name string, opts *ListOptions, cfg *config.Cfg, log *config.Logger) *Store {
	return &Store{
		cfg:           cfg,
		log:           log,
		opts:          opts,
		name:          name,
		globalMasters: map[string]uint32{},
		buckets:       map[string]*bucket{},
		ltexIndex:     map[string]int{},
		landIndex:     map[string]int{},
		intCells:      map[string]int{},
		extCells:      map[string]int{},
		movedRefs:     map[esp.RefKey]movedGrids{},
		dialIndex:     map[string]int{},
		stats:         NewStats(),
	}
}

// Stats exposes the list-level counters.
func (s *Store) Stats() *Stats { return s.stats }

// BeginPlugin starts per-plugin state for the given input path.
func (s *Store) BeginPlugin(path, name string) *pluginState {
	return &pluginState{
		info:  pluginInfo{name: name, nameLow: strings.ToLower(name), path: path},
		vtex:  map[uint16]uint16{},
		stats: NewStats(),
	}
}

// CommitPlugin folds the plugin's counters in and surfaces the per-plugin
// missing-reference summary.
func (s *Store) CommitPlugin(ps *pluginState) {
	s.stats.Add(ps.stats)
	s.stats.PluginsMerged++
	if !s.opts.NoShowMissingRefs {
		s.showIgnoredRefErrors(ps.cellErrors, ps.info.name, true)
		s.showIgnoredRefErrors(ps.refErrors, ps.info.name, false)
	}
	s.plugins = append(s.plugins, ps.info)
}

// Ingest merges one record into the store under the active mode. The first
// record of every plugin must be its TES3 header.
func (s *Store) Ingest(record *esp.Record, ps *pluginState, first bool) error {
	if first {
		if record.Tag != "TES3" {
			return fmt.Errorf("plugin's first record is %s, not a TES3 header", record.Tag)
		}
		return s.ingestHeader(record, ps)
	}
	if record.Tag == "TES3" {
		return fmt.Errorf("plugin is invalid due to multiple header records")
	}
	if s.opts.InsufficientMerge {
		// Fast path for check/grass/TNG runs: only cells and, when grass
		// content matters, statics are merged.
		switch record.Tag {
		case "CELL":
			return s.ingestCell(record, ps)
		case "STAT":
			if s.opts.Mode == ModeGrass || s.opts.TurnNormalGrass {
				return s.ingestGeneric(record, ps)
			}
		}
		return nil
	}
	switch record.Tag {
	case "DIAL":
		return s.ingestDial(record, ps)
	case "INFO":
		return s.ingestInfo(record, ps)
	}
	// Any non-dialogue record closes the active DIAL group.
	ps.activeDial = nil
	switch record.Tag {
	case "CELL":
		return s.ingestCell(record, ps)
	case "LAND":
		return s.ingestLand(record, ps)
	case "LTEX":
		return s.ingestLtex(record, ps)
	case "SNDG":
		if record.ID() == "" {
			id, ok := SynthesizeSoundGenID(record)
			if ok {
				s.log.Msg(2, "    SNDG with empty id was assigned id %q", id)
			} else {
				_, soundType := esp.SoundGenInfo(record)
				s.log.Msg(2, "    SNDG with empty id was NOT assigned id due to unknown type %d", soundType)
			}
		}
		return s.ingestGeneric(record, ps)
	case "SSCR":
		if esp.StartScriptID(record) == "" {
			id := SynthesizeStartScriptID(record)
			s.log.Msg(2, "    SSCR with empty id(Script:%q) was assigned id %q", esp.ScriptName(record), id)
		}
		return s.ingestGeneric(record, ps)
	default:
		return s.ingestGeneric(record, ps)
	}
}

func (s *Store) ingestGeneric(record *esp.Record, ps *pluginState) error {
	key, err := recordKey(record)
	if err != nil {
		return err
	}
	b, ok := s.buckets[record.Tag]
	if !ok {
		b = newBucket()
		s.buckets[record.Tag] = b
	}
	idx, seen := b.index[key]
	if !seen {
		b.index[key] = len(b.entries)
		b.entries = append(b.entries, &entry{head: record})
		ps.stats.processed(record.Tag)
		return nil
	}
	e := b.entries[idx]
	if e.head.Equal(record) {
		if s.opts.Debug {
			e.stack(record)
		}
		ps.stats.duplicate(record.Tag)
		return nil
	}
	_, simple := simpleTags[record.Tag]
	if !simple || s.opts.Debug {
		e.stack(record)
	}
	e.head = record
	ps.stats.replaced(record.Tag)
	return nil
}

// variantsFor returns the records one entry contributes to the output under
// the given fusion mode, head last.
func (s *Store) variantsFor(tag string, e *entry, mode Mode) []*esp.Record {
	if s.opts.Debug {
		if len(e.variants) > 0 {
			return e.variants
		}
		return []*esp.Record{e.head}
	}
	if !mode.stacksVariants(tag) || len(e.variants) == 0 {
		return []*esp.Record{e.head}
	}
	// The variant list carries the head as its final element.
	return e.variants
}
