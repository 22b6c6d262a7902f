package merge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alvazir/habasi/assets"
	"github.com/alvazir/habasi/config"
	"github.com/alvazir/habasi/esp"
	"github.com/alvazir/habasi/loadorder"
)

// Merger drives every merge list of one invocation. Lists are independent
// and run in parallel; each owns its store and reference engine.
type Merger struct {
	cfg *config.Cfg
	log *config.Logger

	mu      sync.Mutex
	total   *Stats
	skipped []string
}

// NewMerger wires the merge engine to its configuration and log sink.
func NewMerger(cfg *config.Cfg, log *config.Logger) *Merger {
	return &Merger{cfg: cfg, log: log, total: NewStats()}
}

// Run processes the preset-derived lists followed by every merge list and
// prints the combined stats.
func (m *Merger) Run(ctx context.Context) error {
	start := time.Now()
	lists := m.cfg.Merge
	if m.cfg.PresetsActive() {
		presetLists, err := m.expandPresets(lists)
		if err != nil {
			return err
		}
		lists = presetLists
	}
	if len(lists) == 0 {
		m.log.Msg(0, "Nothing to proceed: at least one --merge or preset option is required")
		return nil
	}
	group, ctx := errgroup.WithContext(ctx)
	for _, list := range lists {
		list := list
		group.Go(func() error {
			if err := m.processList(ctx, list); err != nil {
				if m.cfg.NoIgnoreErrors {
					return fmt.Errorf("failed to process list %q: %w", strings.Join(list, ", "), err)
				}
				m.log.Msg(0, "Failed to process list %q: %v", strings.Join(list, ", "), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	m.log.Msg(0, "%s\n%s", m.cfg.Guts.PrefixCombinedStats, m.total.TotalLine(time.Since(start)))
	m.log.Msg(2, "%s", m.total.Detail())
	if len(m.skipped) > 0 {
		m.log.Msg(m.cfg.Guts.SkippedPluginsMsgVerbosity, "Skipped processing %d plugin(s):\n%s",
			len(m.skipped), strings.Join(m.skipped, "\n"))
	}
	return nil
}

// expandPresets turns preset flags into concrete lists; the -O preset also
// buckets the load order into index ranges so reindexing cost stays bounded.
func (m *Merger) expandPresets(explicit [][]string) ([][]string, error) {
	lists := m.cfg.PresetLists()
	if !m.cfg.PresetMergeLoadOrder {
		return append(lists, explicit...), nil
	}
	primary := lists[0]
	opts, err := GlobalListOptions(m.cfg)
	if err != nil {
		return nil, err
	}
	index, err := opts.Apply(primary, m.cfg, m.log)
	if err != nil {
		return nil, err
	}
	loOpts := opts.loadOrderOptions()
	configPath, err := loadorder.FindGameConfig(loOpts, m.cfg)
	if err != nil {
		return nil, err
	}
	order, err := loadorder.Resolve(configPath, loOpts, m.cfg, m.log)
	if err != nil {
		return nil, err
	}
	buckets := bucketize(order.Contents, m.cfg.Guts.MergeLoadOrderBuckets)
	name := primary[0]
	options := primary[1:index]
	var out [][]string
	for _, b := range buckets {
		if len(b.plugins) == 0 {
			continue
		}
		bucketName := name
		if len(buckets) > 1 {
			ext := filepath.Ext(name)
			bucketName = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), b.start, ext)
		}
		list := append([]string{bucketName}, options...)
		list = append(list, b.plugins...)
		out = append(out, list)
	}
	if len(order.Groundcovers) > 0 {
		grass := append([]string(nil), m.cfg.Guts.PresetMergeLoadOrderGrass...)
		if m.cfg.PresetTurnNormalGrass {
			grass = append(grass, m.cfg.Guts.ListOptionsPrefixAppendToUseLoadOrder+
				SecondaryName(name, m.cfg.Guts.TNGPluginSuffixGroundcover))
		}
		out = append(out, grass)
	}
	return append(out, explicit...), nil
}

type bucketRange struct {
	start   int
	plugins []string
}

// bucketize splits the plugin sequence at the configured index boundaries.
func bucketize(plugins []string, boundaries []int) []bucketRange {
	if len(boundaries) == 0 {
		boundaries = []int{0}
	}
	var out []bucketRange
	for i, start := range boundaries {
		end := len(plugins)
		if i+1 < len(boundaries) && boundaries[i+1] < end {
			end = boundaries[i+1]
		}
		if start >= len(plugins) {
			break
		}
		out = append(out, bucketRange{start: start, plugins: plugins[start:end]})
	}
	return out
}

func (o *ListOptions) loadOrderOptions() *loadorder.Options {
	return &loadorder.Options{
		BaseDir:               o.BaseDir,
		GameConfig:            o.GameConfig,
		AppendToUseLoadOrder:  o.AppendToUseLoadOrder,
		SkipFromUseLoadOrder:  o.SkipFromUseLoadOrder,
		IgnoreImportantErrors: o.IgnoreImportantErrors,
		RegexCaseSensitive:    o.RegexCaseSensitive,
		RegexSortByName:       o.RegexSortByName,
	}
}

func (m *Merger) processList(ctx context.Context, list []string) error {
	start := time.Now()
	if len(list) == 0 {
		m.log.Msg(0, "Skipping empty list")
		return nil
	}
	name := list[0]
	opts, err := GlobalListOptions(m.cfg)
	if err != nil {
		return err
	}
	index, err := opts.Apply(list, m.cfg, m.log)
	if err != nil {
		return err
	}
	plugins, order, err := m.resolvePlugins(list[index:], &opts)
	if err != nil {
		return err
	}
	if m.cfg.ShowPlugins {
		m.log.Msg(0, "List %q contains %d files:\n%q", name, len(plugins), plugins)
	}
	m.log.Msg(1, "Processing list %q with options: %s", name, opts.Show())

	store := NewStore(name, &opts, m.cfg, m.log)
	secondarySkip := ""
	if opts.TurnNormalGrass || opts.UseLoadOrder {
		secondarySkip = strings.ToLower(SecondaryName(filepath.Base(name), m.cfg.Guts.TNGPluginSuffixGroundcover))
	}
	for _, path := range plugins {
		base := filepath.Base(path)
		baseLow := strings.ToLower(base)
		if skip, reason := m.shouldSkipPlugin(baseLow, secondarySkip, &opts); skip {
			text := fmt.Sprintf("  Skipped processing plugin %q %s", base, reason)
			m.log.Msg(m.cfg.Guts.SkippedPluginsMsgVerbosity, "%s", text)
			m.addSkipped(text)
			continue
		}
		if err := m.mergePlugin(store, path, base, &opts); err != nil {
			return err
		}
	}
	if store.stats.PluginsMerged == 0 {
		m.log.Msg(0, "Skipping list because all plugins were skipped")
		return nil
	}
	if err := store.Finalize(); err != nil {
		return err
	}
	var secondary *esp.Plugin
	if opts.TurnNormalGrass {
		if order == nil {
			m.log.Msg(0, "Output plugin %q: turn_normal_grass needs use_load_order to locate assets, skipping", name)
		} else {
			probe, err := assets.NewProbe(m.cfg, m.log, opts.PreferLooseOverBSA)
			if err != nil {
				return err
			}
			if err := probe.Scan(ctx, order.DataDirs, order.Archives); err != nil {
				return err
			}
			secondary, err = store.PartitionGrass(probe)
			if err != nil {
				return err
			}
		}
	}
	plugin, err := store.Compose()
	if err != nil {
		return err
	}
	if _, err := store.WriteOutput(name, plugin, levelPrimary); err != nil {
		return err
	}
	if secondary != nil {
		secondaryName := SecondaryName(name, m.cfg.Guts.TNGPluginSuffixGroundcover)
		if _, err := store.WriteOutput(secondaryName, secondary, levelSecondary); err != nil {
			return err
		}
	}
	dismiss := opts.DryRun && opts.DryRunDismissStats
	if !dismiss {
		m.log.Msg(0, "%s", store.stats.TotalLine(time.Since(start)))
		m.log.Msg(2, "%s", store.stats.Detail())
	}
	if opts.Debug {
		if report, err := store.stats.Report(); err == nil {
			m.log.Msg(3, "Stats report for %q:\n%s", name, report)
		}
	}
	m.mu.Lock()
	m.total.Add(store.stats)
	m.mu.Unlock()
	return nil
}

// resolvePlugins turns the list's plugin entries into ordered file paths.
// With use_load_order the game configuration supplies the sequence unless
// the list already carries explicit entries (preset bucketing does).
func (m *Merger) resolvePlugins(entries []string, opts *ListOptions) ([]string, *loadorder.LoadOrder, error) {
	loOpts := opts.loadOrderOptions()
	var order *loadorder.LoadOrder
	if opts.UseLoadOrder {
		configPath, err := loadorder.FindGameConfig(loOpts, m.cfg)
		if err != nil {
			return nil, nil, err
		}
		order, err = loadorder.Resolve(configPath, loOpts, m.cfg, m.log)
		if err != nil {
			return nil, nil, err
		}
	}
	var plugins []string
	switch {
	case len(entries) > 0:
		expanded, err := loadorder.ExpandPatterns(entries, loOpts, m.cfg, m.log)
		if err != nil {
			return nil, nil, err
		}
		for _, entry := range expanded {
			path, err := loadorder.ResolvePlugin(entry, opts.BaseDir)
			if err != nil {
				if ignoreErr := m.log.ErrOrIgnore(err.Error(), opts.IgnoreImportantErrors); ignoreErr != nil {
					return nil, nil, ignoreErr
				}
				continue
			}
			plugins = append(plugins, path)
		}
	case order != nil && opts.Mode == ModeGrass:
		plugins = append(plugins, order.Groundcovers...)
	case order != nil:
		plugins = append(plugins, order.Contents...)
	}
	if order != nil && opts.AppendToUseLoadOrder != "" {
		if path, err := loadorder.ResolvePlugin(opts.AppendToUseLoadOrder, opts.BaseDir); err == nil {
			plugins = append(plugins, path)
		} else {
			plugins = append(plugins, opts.AppendToUseLoadOrder)
		}
	}
	return plugins, order, nil
}

func (m *Merger) shouldSkipPlugin(baseLow, secondarySkip string, opts *ListOptions) (bool, string) {
	for _, ext := range m.cfg.Guts.PluginExtensionsToIgnore {
		if strings.HasSuffix(baseLow, ext) {
			return true, "because it has extension to ignore"
		}
	}
	if secondarySkip != "" && strings.HasSuffix(baseLow, secondarySkip) {
		return true, "trying to recreate it from scratch"
	}
	if opts.SkipFromUseLoadOrder != "" && strings.HasSuffix(baseLow, strings.ToLower(opts.SkipFromUseLoadOrder)) {
		return true, "due to \"skip_from_use_load_order\""
	}
	return false, ""
}

func (m *Merger) mergePlugin(store *Store, path, base string, opts *ListOptions) error {
	m.log.Msg(2, "  Processing plugin %q", path)
	plugin, err := esp.Read(path)
	if err != nil {
		var unknownTag *esp.UnknownTagError
		if errors.As(err, &unknownTag) {
			for _, ignored := range m.cfg.Guts.UnexpectedTagsToIgnore {
				if strings.EqualFold(ignored, unknownTag.Tag) {
					text := fmt.Sprintf("  Skipped processing plugin %q because it contains unexpected record type to ignore: %q",
						base, unknownTag.Tag)
					m.log.Msg(m.cfg.Guts.SkippedPluginsMsgVerbosity, "%s", text)
					m.addSkipped(text)
					return nil
				}
			}
			if opts.NoIgnoreErrors {
				return err
			}
			text := fmt.Sprintf("  Skipped processing plugin %q because it contains unexpected record type: %q",
				base, unknownTag.Tag)
			m.log.Msg(0, "%s", text)
			m.addSkipped(text)
			return nil
		}
		// Structural corruption and IO errors are important.
		return m.log.ErrOrIgnore(err.Error(), opts.IgnoreImportantErrors)
	}
	ps := store.BeginPlugin(path, base)
	for i, record := range plugin.Records {
		if err := store.Ingest(record, ps, i == 0); err != nil {
			return fmt.Errorf("failed to process records from plugin %q: %w", path, err)
		}
	}
	store.CommitPlugin(ps)
	return nil
}

func (m *Merger) addSkipped(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.skipped {
		if existing == text {
			return
		}
	}
	m.skipped = append(m.skipped, text)
}
