package loadorder

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/alvazir/habasi/config"
)

type patternHit struct {
	path    string
	nameLow string
	modTime time.Time
}

// ExpandPatterns replaces every `glob:` and `regex:` entry of the plugin
// list with its matches, in place order. Matches sort by modification time
// unless sort-by-name is requested.
func ExpandPatterns(plugins []string, opts *Options, cfg *config.Cfg, log *config.Logger) ([]string, error) {
	var expanded []string
	for _, raw := range plugins {
		kind, pattern, found := strings.Cut(raw, ":")
		kindLow := strings.ToLower(kind)
		if !found || (kindLow != "glob" && kindLow != "regex") {
			expanded = append(expanded, raw)
			continue
		}
		if pattern == "" {
			text := fmt.Sprintf("Pattern is empty in argument: %q", raw)
			if err := log.ErrOrIgnore(text, opts.IgnoreImportantErrors); err != nil {
				return nil, err
			}
			continue
		}
		var hits []patternHit
		var err error
		if kindLow == "glob" {
			hits, err = globPlugins(pattern, opts, cfg)
		} else {
			hits, err = regexPlugins(pattern, opts, cfg)
		}
		if err != nil {
			text := fmt.Sprintf("Failed to get plugins from %s pattern %q: %v", kindLow, pattern, err)
			if err := log.ErrOrIgnore(text, opts.IgnoreImportantErrors); err != nil {
				return nil, err
			}
			continue
		}
		if len(hits) == 0 {
			text := fmt.Sprintf("Nothing found for pattern: %q", pattern)
			if err := log.ErrOrIgnore(text, opts.IgnoreImportantErrors); err != nil {
				return nil, err
			}
			continue
		}
		sortHits(hits, opts.RegexSortByName)
		var names []string
		for _, hit := range hits {
			expanded = append(expanded, hit.path)
			names = append(names, hit.path)
		}
		log.Msg(0, "Pattern %q expanded to: %s", raw, strings.Join(names, " "))
	}
	return expanded, nil
}

func sortHits(hits []patternHit, byName bool) {
	if byName {
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].nameLow != hits[j].nameLow {
				return hits[i].nameLow < hits[j].nameLow
			}
			return hits[i].path < hits[j].path
		})
		return
	}
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].modTime.Equal(hits[j].modTime) {
			return hits[i].modTime.Before(hits[j].modTime)
		}
		return hits[i].path < hits[j].path
	})
}

func globPlugins(pattern string, opts *Options, cfg *config.Cfg) ([]patternHit, error) {
	full := pattern
	if opts.BaseDir != "" {
		full = filepath.Join(opts.BaseDir, pattern)
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, err
	}
	var hits []patternHit
	for _, match := range matches {
		if !hasPluginExtension(match, cfg) {
			continue
		}
		hits = append(hits, patternHit{
			path:    match,
			nameLow: strings.ToLower(filepath.Base(match)),
			modTime: modTime(match),
		})
	}
	return hits, nil
}

// regexPlugins matches file names in the pattern's directory (same
// directory only, no recursion).
func regexPlugins(pattern string, opts *Options, cfg *config.Cfg) ([]patternHit, error) {
	dir := filepath.Dir(pattern)
	expr := filepath.Base(pattern)
	if dir == "." && opts.BaseDir != "" {
		dir = opts.BaseDir
	} else if opts.BaseDir != "" {
		dir = filepath.Join(opts.BaseDir, dir)
	}
	if !opts.RegexCaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var hits []patternHit
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !hasPluginExtension(dirEntry.Name(), cfg) || !re.MatchString(dirEntry.Name()) {
			continue
		}
		path := filepath.Join(dir, dirEntry.Name())
		hits = append(hits, patternHit{
			path:    path,
			nameLow: strings.ToLower(dirEntry.Name()),
			modTime: modTime(path),
		})
	}
	return hits, nil
}

func hasPluginExtension(name string, cfg *config.Cfg) bool {
	return containsString(cfg.Guts.PluginExtensions, strings.ToLower(filepath.Ext(name)))
}

// ResolvePlugin locates a plain plugin entry: absolute paths as-is, then
// the base directory, then the working directory.
func ResolvePlugin(name, baseDir string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("failed to find plugin %q: %w", name, err)
		}
		return name, nil
	}
	if baseDir != "" {
		candidate := filepath.Join(baseDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	return "", fmt.Errorf("failed to find plugin %q in base directory or working directory", name)
}
