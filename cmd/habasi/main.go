// Command habasi merges TES3 plugin lists into one or more output plugins.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alvazir/habasi/config"
	"github.com/alvazir/habasi/merge"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	merge []string

	mode         string
	baseDir      string
	forceBaseDir bool

	useLoadOrder         bool
	gameConfig           string
	appendToUseLoadOrder string
	skipFromUseLoadOrder string

	presetCheckReferences bool
	presetTurnNormalGrass bool
	presetMergeLoadOrder  bool

	dryRun             bool
	dryRunSecondary    bool
	dryRunDismissStats bool

	stripMasters          bool
	reindex               bool
	excludeDeletedRecords bool
	preferLooseOverBSA    bool
	turnNormalGrass       bool
	insufficientMerge     bool

	showAllMissingRefs bool
	noShowMissingRefs  bool

	noCompare          bool
	noCompareSecondary bool

	noIgnoreErrors        bool
	ignoreImportantErrors bool
	forceDialType         bool
	debug                 bool

	regexCaseSensitive bool
	regexSortByName    bool

	verbose     int
	quiet       bool
	logPath     string
	noLog       bool
	showPlugins bool

	settings      string
	settingsWrite bool
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "habasi",
		Short: "TES3 plugin merging and utility tool",
		Long: "Habasi merges TES3 plugin lists into one or more output plugins whose\n" +
			"in-game semantics are equivalent to loading the originals in order.",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(&f)
		},
	}
	fl := cmd.Flags()
	fl.StringArrayVarP(&f.merge, "merge", "m", nil, "merge list: output plugin name, optional list options, then plugin entries")
	fl.StringVarP(&f.mode, "mode", "M", "keep", "merge mode: keep, keep_without_lands, replace, complete_replace, grass")
	fl.StringVarP(&f.baseDir, "base-dir", "b", "", "base directory plugin entries resolve against")
	fl.BoolVarP(&f.forceBaseDir, "force-base-dir", "B", false, "keep base-dir in effect even with --use-load-order")
	fl.BoolVarP(&f.useLoadOrder, "use-load-order", "u", false, "take the plugin sequence from the game configuration file")
	fl.StringVarP(&f.gameConfig, "config", "c", "", "path to openmw.cfg or Morrowind.ini")
	fl.StringVar(&f.appendToUseLoadOrder, "append-to-use-load-order", "", "plugin to append to the load order")
	fl.StringVar(&f.skipFromUseLoadOrder, "skip-from-use-load-order", "", "plugin name to drop from the load order")
	fl.BoolVarP(&f.presetCheckReferences, "preset-check-references", "C", false, "report missing references across the load order (dry run)")
	fl.BoolVarP(&f.presetTurnNormalGrass, "preset-turn-normal-grass", "T", false, "produce a groundcover twin from grass-shaped statics")
	fl.BoolVarP(&f.presetMergeLoadOrder, "preset-merge-load-order", "O", false, "merge the whole load order into bucketed outputs")
	fl.BoolVarP(&f.dryRun, "dry-run", "d", false, "do not write output plugins")
	fl.BoolVar(&f.dryRunSecondary, "dry-run-secondary", false, "do not write the secondary (groundcover) output")
	fl.BoolVar(&f.dryRunDismissStats, "dry-run-dismiss-stats", false, "omit the stats line for dry runs")
	fl.BoolVarP(&f.stripMasters, "strip-masters", "S", false, "drop master subrecords when no kept reference needs them")
	fl.BoolVarP(&f.reindex, "reindex", "r", false, "renumber owned references into a contiguous range")
	fl.BoolVarP(&f.excludeDeletedRecords, "exclude-deleted-records", "E", false, "drop records carrying the DELETED flag (implies --use-load-order)")
	fl.BoolVarP(&f.preferLooseOverBSA, "prefer-loose-over-bsa", "p", false, "a loose mesh always beats an archived one")
	fl.BoolVarP(&f.turnNormalGrass, "turn-normal-grass", "t", false, "move groundcover-marked static instances into a secondary output")
	fl.BoolVar(&f.insufficientMerge, "insufficient-merge", false, "merge only cells (and statics for grass runs)")
	fl.BoolVarP(&f.showAllMissingRefs, "show-all-missing-refs", "a", false, "report every missing reference instead of the first per cell")
	fl.BoolVarP(&f.noShowMissingRefs, "no-show-missing-refs", "A", false, "suppress missing-reference warnings")
	fl.BoolVarP(&f.noCompare, "no-compare", "P", false, "skip comparing against the previous output version")
	fl.BoolVar(&f.noCompareSecondary, "no-compare-secondary", false, "skip comparing the secondary output")
	fl.BoolVarP(&f.noIgnoreErrors, "no-ignore-errors", "I", false, "upgrade recoverable errors to fatal")
	fl.BoolVar(&f.ignoreImportantErrors, "ignore-important-errors", false, "downgrade corrupted-plugin errors to warnings")
	fl.BoolVar(&f.forceDialType, "force-dial-type", false, "rewrite INFO types to match the surviving dialogue type")
	fl.BoolVar(&f.debug, "debug", false, "keep every record variant and dump stats reports")
	fl.BoolVar(&f.regexCaseSensitive, "regex-case-sensitive", false, "match regex: and glob: patterns case-sensitively")
	fl.BoolVar(&f.regexSortByName, "regex-sort-by-name", false, "sort pattern matches by name instead of modification time")
	fl.CountVarP(&f.verbose, "verbose", "v", "increase verbosity (repeatable)")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "print nothing to the console")
	fl.StringVarP(&f.logPath, "log", "l", "habasi.log", "log file path")
	fl.BoolVarP(&f.noLog, "no-log", "L", false, "do not write a log file")
	fl.BoolVar(&f.showPlugins, "show-plugins", false, "list the resolved plugins of every list")
	fl.StringVarP(&f.settings, "settings", "s", "", "path to the TOML settings file")
	fl.BoolVar(&f.settingsWrite, "settings-write", false, "write the settings file with current defaults and exit")
	return cmd
}

func run(f *flags) error {
	cfg, err := config.Load(f.settings)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, f); err != nil {
		return err
	}
	log, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()
	if !cfg.NoLog {
		log.MsgNoLog(1, "Log is written to %q", cfg.LogPath)
	}
	if cfg.SettingsWrite {
		path, err := cfg.WriteSettings()
		if err != nil {
			return err
		}
		log.Msg(0, "Settings file was written to %q", path)
		return nil
	}
	if version, outdated := cfg.SettingsOutdated(); outdated {
		log.Msg(0, "Settings file version %q is older than program version %q; consider --settings-write",
			version, config.Version)
	}
	return merge.NewMerger(cfg, log).Run(context.Background())
}

func applyFlags(cfg *config.Cfg, f *flags) error {
	for _, spec := range f.merge {
		list, err := config.ParseMergeList(spec)
		if err != nil {
			return err
		}
		cfg.Merge = append(cfg.Merge, list)
	}
	cfg.Mode = f.mode
	cfg.BaseDir = f.baseDir
	cfg.ForceBaseDir = f.forceBaseDir
	cfg.UseLoadOrder = f.useLoadOrder
	cfg.GameConfig = f.gameConfig
	cfg.AppendToUseLoadOrder = f.appendToUseLoadOrder
	cfg.SkipFromUseLoadOrder = f.skipFromUseLoadOrder
	cfg.PresetCheckReferences = f.presetCheckReferences
	cfg.PresetTurnNormalGrass = f.presetTurnNormalGrass
	cfg.PresetMergeLoadOrder = f.presetMergeLoadOrder
	cfg.DryRun = f.dryRun
	cfg.DryRunSecondary = f.dryRunSecondary
	cfg.DryRunDismissStats = f.dryRunDismissStats
	cfg.StripMasters = f.stripMasters
	cfg.Reindex = f.reindex
	cfg.ExcludeDeletedRecords = f.excludeDeletedRecords
	cfg.PreferLooseOverBSA = f.preferLooseOverBSA
	cfg.TurnNormalGrass = f.turnNormalGrass
	cfg.InsufficientMerge = f.insufficientMerge
	cfg.ShowAllMissingRefs = f.showAllMissingRefs
	cfg.NoShowMissingRefs = f.noShowMissingRefs
	cfg.NoCompare = f.noCompare
	cfg.NoCompareSecondary = f.noCompareSecondary
	cfg.NoIgnoreErrors = f.noIgnoreErrors
	cfg.IgnoreImportantErrors = f.ignoreImportantErrors
	cfg.ForceDialType = f.forceDialType
	cfg.Debug = f.debug
	cfg.RegexCaseSensitive = f.regexCaseSensitive
	cfg.RegexSortByName = f.regexSortByName
	cfg.Verbose = f.verbose
	cfg.Quiet = f.quiet
	cfg.LogPath = f.logPath
	cfg.NoLog = f.noLog
	cfg.ShowPlugins = f.showPlugins
	cfg.SettingsWrite = f.settingsWrite
	return nil
}
