package merge

import (
	"fmt"
	"strings"

	"github.com/alvazir/habasi/config"
)

// ListOptions is the effective option set of one merge list: global flags
// overridden by the inline tokens that may follow the output name.
type ListOptions struct {
	Mode    Mode
	BaseDir string

	DryRun             bool
	DryRunSecondary    bool
	DryRunDismissStats bool

	UseLoadOrder         bool
	GameConfig           string
	AppendToUseLoadOrder string
	SkipFromUseLoadOrder string

	StripMasters          bool
	Reindex               bool
	ExcludeDeletedRecords bool
	PreferLooseOverBSA    bool
	TurnNormalGrass       bool
	InsufficientMerge     bool
	ForceBaseDir          bool

	ShowAllMissingRefs bool
	NoShowMissingRefs  bool

	NoCompare          bool
	NoCompareSecondary bool

	NoIgnoreErrors        bool
	IgnoreImportantErrors bool
	ForceDialType         bool
	Debug                 bool

	RegexCaseSensitive bool
	RegexSortByName    bool
}

// GlobalListOptions builds the baseline options from CLI flags.
func GlobalListOptions(cfg *config.Cfg) (ListOptions, error) {
	mode, ok := ParseMode(cfg.Mode)
	if !ok {
		return ListOptions{}, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	return ListOptions{
		Mode:                  mode,
		BaseDir:               cfg.BaseDir,
		DryRun:                cfg.DryRun,
		DryRunSecondary:       cfg.DryRunSecondary,
		DryRunDismissStats:    cfg.DryRunDismissStats,
		UseLoadOrder:          cfg.UseLoadOrder,
		GameConfig:            cfg.GameConfig,
		AppendToUseLoadOrder:  cfg.AppendToUseLoadOrder,
		SkipFromUseLoadOrder:  cfg.SkipFromUseLoadOrder,
		StripMasters:          cfg.StripMasters,
		Reindex:               cfg.Reindex,
		ExcludeDeletedRecords: cfg.ExcludeDeletedRecords,
		PreferLooseOverBSA:    cfg.PreferLooseOverBSA,
		TurnNormalGrass:       cfg.TurnNormalGrass,
		InsufficientMerge:     cfg.InsufficientMerge,
		ForceBaseDir:          cfg.ForceBaseDir,
		ShowAllMissingRefs:    cfg.ShowAllMissingRefs,
		NoShowMissingRefs:     cfg.NoShowMissingRefs,
		NoCompare:             cfg.NoCompare,
		NoCompareSecondary:    cfg.NoCompareSecondary,
		NoIgnoreErrors:        cfg.NoIgnoreErrors,
		IgnoreImportantErrors: cfg.IgnoreImportantErrors,
		ForceDialType:         cfg.ForceDialType,
		Debug:                 cfg.Debug,
		RegexCaseSensitive:    cfg.RegexCaseSensitive,
		RegexSortByName:       cfg.RegexSortByName,
	}, nil
}

// Apply consumes the inline option tokens that follow the output name of a
// merge list and returns the index of the first plugin entry.
func (o *ListOptions) Apply(list []string, cfg *config.Cfg, log *config.Logger) (int, error) {
	index := 1
	for index < len(list) {
		raw := list[index]
		token := strings.ReplaceAll(strings.ToLower(raw), "-", "_")
		token = strings.TrimPrefix(token, "__")
		// Prefixed options carry their value after the first colon of the
		// raw argument; the value keeps its original case.
		value := ""
		if colon := strings.IndexByte(raw, ':'); colon >= 0 {
			value = raw[colon+1:]
		}
		switch {
		case strings.HasPrefix(token, cfg.Guts.ListOptionsPrefixBaseDir):
			o.BaseDir = value
		case strings.HasPrefix(token, cfg.Guts.ListOptionsPrefixConfig):
			o.GameConfig = value
		case strings.HasPrefix(token, cfg.Guts.ListOptionsPrefixAppendToUseLoadOrder):
			o.AppendToUseLoadOrder = value
		case strings.HasPrefix(token, cfg.Guts.ListOptionsPrefixSkipFromUseLoadOrder):
			o.SkipFromUseLoadOrder = value
		default:
			if mode, ok := ParseMode(token); ok {
				o.Mode = mode
				break
			}
			if !o.applyToggle(token) {
				// First token that is neither an option nor a mode starts
				// the plugin list.
				o.mutate(cfg, log)
				return index, nil
			}
		}
		index++
	}
	o.mutate(cfg, log)
	return index, nil
}

func (o *ListOptions) applyToggle(token string) bool {
	value := !strings.HasPrefix(token, "no_")
	name := strings.TrimPrefix(token, "no_")
	switch name {
	case "dry_run":
		o.DryRun = value
	case "dry_run_secondary":
		o.DryRunSecondary = value
	case "dry_run_dismiss_stats":
		o.DryRunDismissStats = value
	case "use_load_order":
		o.UseLoadOrder = value
	case "strip_masters":
		o.StripMasters = value
	case "reindex":
		o.Reindex = value
	case "exclude_deleted_records":
		o.ExcludeDeletedRecords = value
	case "prefer_loose_over_bsa":
		o.PreferLooseOverBSA = value
	case "turn_normal_grass":
		o.TurnNormalGrass = value
	case "insufficient_merge":
		o.InsufficientMerge = value
	case "force_base_dir":
		o.ForceBaseDir = value
	case "show_all_missing_refs":
		o.ShowAllMissingRefs = value
	case "show_missing_refs":
		o.NoShowMissingRefs = !value
	case "compare":
		o.NoCompare = !value
	case "compare_secondary":
		o.NoCompareSecondary = !value
	case "ignore_errors":
		o.NoIgnoreErrors = !value
	case "ignore_important_errors":
		o.IgnoreImportantErrors = value
	case "force_dial_type":
		o.ForceDialType = value
	case "debug":
		o.Debug = value
	case "regex_case_sensitive":
		o.RegexCaseSensitive = value
	case "regex_sort_by_name":
		o.RegexSortByName = value
	default:
		return false
	}
	return true
}

// mutate applies the implicit adjustments between options.
func (o *ListOptions) mutate(cfg *config.Cfg, log *config.Logger) {
	const prefix = "List options: implicitly"
	if o.ExcludeDeletedRecords && !o.UseLoadOrder {
		log.Msg(1, "%s set \"use_load_order\" due to \"exclude_deleted_records\"", prefix)
		o.UseLoadOrder = true
	}
	if o.ForceBaseDir && !o.UseLoadOrder {
		log.Msg(1, "%s unset \"force_base_dir\" due to lack of \"use_load_order\"", prefix)
		o.ForceBaseDir = false
	}
	if o.BaseDir != "" && o.UseLoadOrder && !o.ForceBaseDir {
		log.Msg(1, "%s set \"base_dir:\"(empty) due to \"use_load_order\" and lack of \"force_base_dir\"", prefix)
		o.BaseDir = ""
	}
	if o.Mode == ModeGrass {
		if o.TurnNormalGrass {
			log.Msg(1, "%s unset \"turn_normal_grass\" due to \"grass\" mode", prefix)
			o.TurnNormalGrass = false
		}
		if !o.InsufficientMerge {
			log.Msg(1, "%s set \"insufficient_merge\" due to \"grass\" mode", prefix)
			o.InsufficientMerge = true
		}
	}
}

// Show renders the option set the way list-processing messages print it.
func (o *ListOptions) Show() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode = %s", o.Mode)
	if o.BaseDir != "" {
		fmt.Fprintf(&b, ", base_dir = %q", o.BaseDir)
	}
	if o.GameConfig != "" {
		fmt.Fprintf(&b, ", config = %q", o.GameConfig)
	}
	if o.AppendToUseLoadOrder != "" {
		fmt.Fprintf(&b, ", append_to_use_load_order = %q", o.AppendToUseLoadOrder)
	}
	if o.SkipFromUseLoadOrder != "" {
		fmt.Fprintf(&b, ", skip_from_use_load_order = %q", o.SkipFromUseLoadOrder)
	}
	for _, flag := range []struct {
		set  bool
		name string
	}{
		{o.DryRun, "dry_run"},
		{o.UseLoadOrder, "use_load_order"},
		{o.ShowAllMissingRefs, "show_all_missing_refs"},
		{o.TurnNormalGrass, "turn_normal_grass"},
		{o.PreferLooseOverBSA, "prefer_loose_over_bsa"},
		{o.Reindex, "reindex"},
		{o.StripMasters, "strip_masters"},
		{o.ForceBaseDir, "force_base_dir"},
		{o.ExcludeDeletedRecords, "exclude_deleted_records"},
		{o.NoShowMissingRefs, "no_show_missing_refs"},
		{o.Debug, "debug"},
		{o.NoIgnoreErrors, "no_ignore_errors"},
		{o.NoCompare, "no_compare"},
		{o.NoCompareSecondary, "no_compare_secondary"},
		{o.DryRunSecondary, "dry_run_secondary"},
		{o.DryRunDismissStats, "dry_run_dismiss_stats"},
		{o.IgnoreImportantErrors, "ignore_important_errors"},
		{o.ForceDialType, "force_dial_type"},
		{o.RegexCaseSensitive, "regex_case_sensitive"},
		{o.RegexSortByName, "regex_sort_by_name"},
		{o.InsufficientMerge, "insufficient_merge"},
	} {
		if flag.set {
			fmt.Fprintf(&b, ", %s", flag.name)
		}
	}
	return b.String()
}
