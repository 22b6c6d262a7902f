// Package config owns everything the merge core receives from the outside:
// parsed CLI options, the optional TOML settings file, preset expansion and
// the log sink. The core never reads globals; it gets a *Cfg and a *Logger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/mod/semver"
)

// Version is the program version recorded into written settings files.
const Version = "v1.2.0"

// Cfg is the resolved program configuration: CLI flags merged over settings
// file values over defaults.
type Cfg struct {
	Merge        [][]string
	Mode         string
	BaseDir      string
	ForceBaseDir bool

	UseLoadOrder         bool
	GameConfig           string
	AppendToUseLoadOrder string
	SkipFromUseLoadOrder string

	PresetCheckReferences bool
	PresetTurnNormalGrass bool
	PresetMergeLoadOrder  bool

	DryRun             bool
	DryRunSecondary    bool
	DryRunDismissStats bool

	StripMasters          bool
	Reindex               bool
	ExcludeDeletedRecords bool
	PreferLooseOverBSA    bool
	TurnNormalGrass       bool
	InsufficientMerge     bool

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

	Verbose     int
	Quiet       bool
	LogPath     string
	NoLog       bool
	ShowPlugins bool

	SettingsPath  string
	SettingsWrite bool

	Guts     Guts
	Advanced Advanced

	settingsVersion string
}

// Load reads the settings file (when present) underneath the defaults and
// returns the configuration ready for CLI flags to be applied on top.
func Load(settingsPath string) (*Cfg, error) {
	cfg := &Cfg{
		Mode:         "keep",
		LogPath:      "habasi.log",
		SettingsPath: settingsPath,
		Guts:         defaultGuts(),
		Advanced:     defaultAdvanced(),
	}
	path := settingsPath
	if path == "" {
		path = defaultSettingsPath()
	}
	if _, err := os.Stat(path); err != nil {
		if settingsPath != "" {
			return nil, fmt.Errorf("failed to read settings file %q: %w", settingsPath, err)
		}
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %q: %w", path, err)
	}
	cfg.SettingsPath = path
	if err := v.UnmarshalKey("guts", &cfg.Guts); err != nil {
		return nil, fmt.Errorf("failed to decode [guts] from %q: %w", path, err)
	}
	if err := v.UnmarshalKey("advanced", &cfg.Advanced); err != nil {
		return nil, fmt.Errorf("failed to decode [advanced] from %q: %w", path, err)
	}
	cfg.settingsVersion = v.GetString("version")
	return cfg, nil
}

// SettingsOutdated reports whether the loaded settings file was written by
// an older program version.
func (c *Cfg) SettingsOutdated() (string, bool) {
	if c.settingsVersion == "" {
		return "", false
	}
	if semver.Compare(c.settingsVersion, Version) < 0 {
		return c.settingsVersion, true
	}
	return "", false
}

// WriteSettings writes the current defaults as a TOML settings file so the
// user has every knob spelled out.
func (c *Cfg) WriteSettings() (string, error) {
	path := c.SettingsPath
	if path == "" {
		path = defaultSettingsPath()
	}
	if err := backupFile(path, c.Guts.SettingsBackupSuffix); err != nil {
		return "", err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.Set("version", Version)
	v.Set("guts", c.Guts)
	v.Set("advanced", c.Advanced)
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write settings file %q: %w", path, err)
	}
	return path, nil
}

func defaultSettingsPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "habasi.toml"
	}
	return filepath.Join(filepath.Dir(exe), "habasi.toml")
}

func backupFile(path, suffix string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := os.Rename(path, path+suffix); err != nil {
		return fmt.Errorf("failed to back up %q: %w", path, err)
	}
	return nil
}

// ListEquals compares plugin names the way the engines do.
func ListEquals(a, b string) bool { return strings.EqualFold(a, b) }
