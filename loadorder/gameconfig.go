// Package loadorder resolves the ordered plugin list a merge list stands
// for: game configuration files, inline plugin entries, glob and regex
// patterns.
package loadorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alvazir/habasi/config"
)

// Archive is one BSA of the load order with the modification time used for
// loose-vs-archive arbitration.
type Archive struct {
	Path    string
	ModTime time.Time
}

// LoadOrder is the resolved content of a game configuration file.
type LoadOrder struct {
	Contents     []string
	Groundcovers []string
	DataDirs     []string
	Archives     []Archive
}

// Options carries the subset of list options the resolver needs.
type Options struct {
	BaseDir               string
	GameConfig            string
	AppendToUseLoadOrder  string
	SkipFromUseLoadOrder  string
	IgnoreImportantErrors bool
	RegexCaseSensitive    bool
	RegexSortByName       bool
}

// FindGameConfig locates the game configuration file: the explicit path
// when given, otherwise the first hit among the conventional locations.
func FindGameConfig(opts *Options, cfg *config.Cfg) (string, error) {
	if opts.GameConfig != "" {
		if _, err := os.Stat(opts.GameConfig); err != nil {
			return "", fmt.Errorf("failed to find game configuration file %q: %w", opts.GameConfig, err)
		}
		return opts.GameConfig, nil
	}
	candidates := make([]string, 0, len(cfg.Guts.OmwConfigPaths)+2)
	candidates = append(candidates, cfg.Guts.OmwConfigPaths...)
	if home, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "openmw", "openmw.cfg"))
	}
	if runtime.GOOS == "windows" {
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, "Documents", "My Games", "OpenMW", "openmw.cfg"))
		}
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("failed to find a game configuration file; pass one with --config")
}

// Resolve parses the game configuration file into an ordered load order:
// data directories, content plugins, groundcovers and fallback archives.
func Resolve(path string, opts *Options, cfg *config.Cfg, log *config.Logger) (*LoadOrder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game configuration file %q: %w", path, err)
	}
	defer file.Close()
	log.Msg(1, "Gathering plugins from game configuration file %q", path)

	var omwData, omwContent, omwGroundcover, omwArchives []string
	morrowind := false
	section := ""
	var order LoadOrder
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";"):
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			section = strings.Trim(line, "[]")
			morrowind = true
		case morrowind:
			morParseLine(line, section, &order, path, cfg)
		case strings.HasPrefix(line, cfg.Guts.OmwLineData):
			omwData = append(omwData, unquote(line[len(cfg.Guts.OmwLineData):]))
		case strings.HasPrefix(line, cfg.Guts.OmwLineContent):
			omwContent = append(omwContent, strings.TrimSpace(line[len(cfg.Guts.OmwLineContent):]))
		case strings.HasPrefix(line, cfg.Guts.OmwLineGroundcover):
			omwGroundcover = append(omwGroundcover, strings.TrimSpace(line[len(cfg.Guts.OmwLineGroundcover):]))
		case strings.HasPrefix(line, cfg.Guts.OmwLineFallbackArchive):
			omwArchives = append(omwArchives, strings.TrimSpace(line[len(cfg.Guts.OmwLineFallbackArchive):]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game configuration file %q: %w", path, err)
	}
	if morrowind {
		return &order, nil
	}
	order.DataDirs = omwData
	all, err := scanDataDirs(omwData, cfg, opts.IgnoreImportantErrors, log)
	if err != nil {
		return nil, err
	}
	resolveNames := func(names []string, kind string, into *[]string) error {
		for _, name := range names {
			path, ok := all[strings.ToLower(name)]
			if !ok {
				text := fmt.Sprintf("Failed to find %s %q", kind, name)
				if err := log.ErrOrIgnore(text, opts.IgnoreImportantErrors); err != nil {
					return err
				}
				continue
			}
			*into = append(*into, path)
		}
		return nil
	}
	if err := resolveNames(omwContent, "plugin", &order.Contents); err != nil {
		return nil, err
	}
	if err := resolveNames(omwGroundcover, "groundcover", &order.Groundcovers); err != nil {
		return nil, err
	}
	for _, name := range omwArchives {
		path, ok := all[strings.ToLower(name)]
		if !ok {
			text := fmt.Sprintf("Failed to find fallback archive %q", name)
			if err := log.ErrOrIgnore(text, opts.IgnoreImportantErrors); err != nil {
				return nil, err
			}
			continue
		}
		order.Archives = append(order.Archives, Archive{Path: path, ModTime: modTime(path)})
	}
	return &order, nil
}

// morParseLine handles one Morrowind.ini line inside a known section.
// Plugin and archive paths resolve against the "Data Files" directory next
// to the ini.
func morParseLine(line, section string, order *LoadOrder, iniPath string, cfg *config.Cfg) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return
	}
	value := strings.TrimSpace(line[eq+1:])
	if value == "" {
		return
	}
	dataFiles := filepath.Join(filepath.Dir(iniPath), cfg.Guts.MorDataFilesDir)
	if len(order.DataDirs) == 0 {
		order.DataDirs = []string{dataFiles}
	}
	switch section {
	case cfg.Guts.MorSectionGameFiles:
		order.Contents = append(order.Contents, filepath.Join(dataFiles, value))
	case cfg.Guts.MorSectionArchives:
		path := filepath.Join(dataFiles, value)
		order.Archives = append(order.Archives, Archive{Path: path, ModTime: modTime(path)})
		base := filepath.Join(dataFiles, cfg.Guts.MorBaseArchive)
		if !containsArchive(order.Archives, base) {
			order.Archives = append([]Archive{{Path: base, ModTime: modTime(base)}}, order.Archives...)
		}
	}
}

func containsArchive(archives []Archive, path string) bool {
	for _, archive := range archives {
		if strings.EqualFold(archive.Path, path) {
			return true
		}
	}
	return false
}

// scanDataDirs lists plugin files across every data directory in parallel.
// Later directories win for duplicate names, matching the engine's rule.
func scanDataDirs(dirs []string, cfg *config.Cfg, ignore bool, log *config.Logger) (map[string]string, error) {
	type found struct {
		dir  int
		name string
		path string
	}
	results := make([][]found, len(dirs))
	var group errgroup.Group
	for i, dir := range dirs {
		i, dir := i, dir
		group.Go(func() error {
			entries, err := os.ReadDir(dir)
			if err != nil {
				text := fmt.Sprintf("Failed to open directory %q with error: %q", dir, err)
				if ignore {
					log.MsgNoLog(0, "%s%s", cfg.Guts.PrefixIgnoredImportantError, text)
					return nil
				}
				return fmt.Errorf("%s%s", text, cfg.Guts.SuffixIgnoreErrorsSuggestion)
			}
			for _, dirEntry := range entries {
				if dirEntry.IsDir() {
					continue
				}
				ext := strings.ToLower(filepath.Ext(dirEntry.Name()))
				if !containsString(cfg.Guts.PluginExtensions, ext) {
					continue
				}
				results[i] = append(results[i], found{
					dir:  i,
					name: strings.ToLower(dirEntry.Name()),
					path: filepath.Join(dir, dirEntry.Name()),
				})
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	all := map[string]string{}
	for _, dirResults := range results {
		sort.Slice(dirResults, func(a, b int) bool { return dirResults[a].name < dirResults[b].name })
		for _, f := range dirResults {
			all[f.name] = f.path
		}
	}
	return all, nil
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func unquote(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
