package merge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Counter tracks what happened to one record kind while merging.
type Counter struct {
	Processed int `yaml:"processed"`
	Merged    int `yaml:"merged,omitempty"`
	Replaced  int `yaml:"replaced,omitempty"`
	Duplicate int `yaml:"duplicate,omitempty"`
	Excluded  int `yaml:"excluded,omitempty"`
	Result    int `yaml:"result"`
}

// Stats aggregates per-kind counters plus list-level numbers. It marshals
// to YAML for the debug report dumped into the log.
type Stats struct {
	Kinds              map[string]*Counter `yaml:"kinds"`
	PluginsMerged      int                 `yaml:"plugins_merged"`
	ResultPlugins      int                 `yaml:"result_plugins"`
	InstancesProcessed int                 `yaml:"instances_processed"`
	InstancesResult    int                 `yaml:"instances_result"`
	GrassFiltered      int                 `yaml:"grass_filtered,omitempty"`
}

// NewStats returns an empty stats block.
func NewStats() *Stats {
	return &Stats{Kinds: map[string]*Counter{}}
}

func (s *Stats) kind(tag string) *Counter {
	counter, ok := s.Kinds[tag]
	if !ok {
		counter = &Counter{}
		s.Kinds[tag] = counter
	}
	return counter
}

func (s *Stats) processed(tag string) { s.kind(tag).Processed++ }
func (s *Stats) merged(tag string)    { s.kind(tag).Merged++ }
func (s *Stats) replaced(tag string)  { s.kind(tag).Replaced++ }
func (s *Stats) duplicate(tag string) { s.kind(tag).Duplicate++ }
func (s *Stats) excluded(tag string)  { s.kind(tag).Excluded++ }
func (s *Stats) result(tag string)    { s.kind(tag).Result++ }

// Add folds another stats block into this one.
func (s *Stats) Add(other *Stats) {
	for tag, counter := range other.Kinds {
		sum := s.kind(tag)
		sum.Processed += counter.Processed
		sum.Merged += counter.Merged
		sum.Replaced += counter.Replaced
		sum.Duplicate += counter.Duplicate
		sum.Excluded += counter.Excluded
		sum.Result += counter.Result
	}
	s.PluginsMerged += other.PluginsMerged
	s.ResultPlugins += other.ResultPlugins
	s.InstancesProcessed += other.InstancesProcessed
	s.InstancesResult += other.InstancesResult
	s.GrassFiltered += other.GrassFiltered
}

// TotalResult counts records that made it into outputs.
func (s *Stats) TotalResult() int {
	total := 0
	for _, counter := range s.Kinds {
		total += counter.Result
	}
	return total
}

// TotalLine renders the one-line summary printed after every list.
func (s *Stats) TotalLine(elapsed time.Duration) string {
	return fmt.Sprintf("Merged %d plugin(s) into %d plugin(s): %d record(s), %d instance(s), %.3fs",
		s.PluginsMerged, s.ResultPlugins, s.TotalResult(), s.InstancesResult, elapsed.Seconds())
}

// Detail renders the per-kind breakdown for verbose output.
func (s *Stats) Detail() string {
	tags := make([]string, 0, len(s.Kinds))
	for tag := range s.Kinds {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	var b strings.Builder
	for _, tag := range tags {
		counter := s.Kinds[tag]
		fmt.Fprintf(&b, "\n  %s: processed %d, merged %d, replaced %d, duplicate %d, excluded %d, result %d",
			tag, counter.Processed, counter.Merged, counter.Replaced, counter.Duplicate,
			counter.Excluded, counter.Result)
	}
	return b.String()
}

// Report marshals the stats block as YAML for the debug log dump.
func (s *Stats) Report() (string, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats report: %w", err)
	}
	return string(data), nil
}
