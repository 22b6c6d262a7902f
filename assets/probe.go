package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/viant/afs"
	"golang.org/x/sync/errgroup"

	"github.com/alvazir/habasi/config"
	"github.com/alvazir/habasi/loadorder"
)

const classificationCacheSize = 4096

type looseFile struct {
	path    string
	modTime time.Time
}

type archivedFile struct {
	bsa     *BSA
	index   int
	modTime time.Time
}

type classification struct {
	exists      bool
	groundcover bool
}

// Probe indexes meshes across loose data directories and BSA archives and
// classifies them as groundcover by their root node name.
type Probe struct {
	fs          afs.Service
	cfg         *config.Cfg
	log         *config.Logger
	preferLoose bool

	mu    sync.Mutex
	loose map[string]looseFile
	bsa   map[string]archivedFile
	cache *lru.Cache[string, classification]
}

// NewProbe creates an empty probe; Scan fills it.
func NewProbe(cfg *config.Cfg, log *config.Logger, preferLoose bool) (*Probe, error) {
	cache, err := lru.New[string, classification](classificationCacheSize)
	if err != nil {
		return nil, err
	}
	return &Probe{
		fs:          afs.New(),
		cfg:         cfg,
		log:         log,
		preferLoose: preferLoose,
		loose:       map[string]looseFile{},
		bsa:         map[string]archivedFile{},
		cache:       cache,
	}, nil
}

// Scan walks every data directory's meshes subtree and every archive index
// in parallel. Later data directories and later archives win for duplicate
// mesh paths, matching the engine's override order.
func (p *Probe) Scan(ctx context.Context, dataDirs []string, archives []loadorder.Archive) error {
	looseResults := make([]map[string]looseFile, len(dataDirs))
	bsaResults := make([]*BSA, len(archives))
	group, ctx := errgroup.WithContext(ctx)
	for i, dir := range dataDirs {
		i, dir := i, dir
		group.Go(func() error {
			files, err := p.scanLooseDir(ctx, dir)
			if err != nil {
				return err
			}
			looseResults[i] = files
			return nil
		})
	}
	for i, archive := range archives {
		i, archive := i, archive
		group.Go(func() error {
			bsa, err := OpenBSA(archive.Path)
			if err != nil {
				text := fmt.Sprintf("Failed to read BSA file %q: %v", archive.Path, err)
				if p.cfg.IgnoreImportantErrors {
					p.log.MsgNoLog(0, "%s%s", p.cfg.Guts.PrefixIgnoredImportantError, text)
					return nil
				}
				return fmt.Errorf("%s%s", text, p.cfg.Guts.SuffixIgnoreErrorsSuggestion)
			}
			bsaResults[i] = bsa
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for _, files := range looseResults {
		for key, file := range files {
			p.loose[key] = file
		}
	}
	for i, bsa := range bsaResults {
		if bsa == nil {
			continue
		}
		for index, name := range bsa.Names() {
			key, ok := meshKey(name, p.cfg.Guts.MeshesDir, p.cfg.Guts.MeshExtension)
			if !ok {
				continue
			}
			p.bsa[key] = archivedFile{bsa: bsa, index: index, modTime: archives[i].ModTime}
		}
	}
	p.log.Msg(2, "Asset probe: indexed %d loose mesh(es) and %d archived mesh(es)", len(p.loose), len(p.bsa))
	return nil
}

// scanLooseDir walks one data directory's meshes subtree through the afs
// service, collecting *.nif files keyed by their meshes-relative path.
func (p *Probe) scanLooseDir(ctx context.Context, dir string) (map[string]looseFile, error) {
	files := map[string]looseFile{}
	meshesDir, err := findSubdirFold(dir, p.cfg.Guts.MeshesDir)
	if err != nil || meshesDir == "" {
		// A data directory without meshes is routine.
		return files, nil
	}
	err = p.fs.Walk(ctx, meshesDir, func(ctx context.Context, baseURL string, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if info.IsDir() {
			return true, nil
		}
		if !strings.EqualFold(filepath.Ext(info.Name()), p.cfg.Guts.MeshExtension) {
			return true, nil
		}
		relative := filepath.ToSlash(filepath.Join(parent, info.Name()))
		key := strings.ToLower(relative)
		files[key] = looseFile{
			path:    filepath.Join(meshesDir, filepath.FromSlash(relative)),
			modTime: info.ModTime(),
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk meshes directory %q: %w", meshesDir, err)
	}
	return files, nil
}

// findSubdirFold locates a direct subdirectory by case-insensitive name.
func findSubdirFold(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, dirEntry := range entries {
		if dirEntry.IsDir() && strings.EqualFold(dirEntry.Name(), name) {
			return filepath.Join(dir, dirEntry.Name()), nil
		}
	}
	return "", nil
}

// meshKey normalizes an archived file path to the meshes-relative
// lowercased form, or reports that the file is not a mesh.
func meshKey(name, meshesDir, extension string) (string, bool) {
	normalized := strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	if !strings.HasSuffix(normalized, strings.ToLower(extension)) {
		return "", false
	}
	prefix := strings.ToLower(meshesDir) + "/"
	if strings.HasPrefix(normalized, prefix) {
		return normalized[len(prefix):], true
	}
	return normalized, true
}

// Lookup reports where a mesh would load from; used by diagnostics and
// tests.
func (p *Probe) Lookup(mesh string) (loose bool, archived bool) {
	key := normalizeMeshPath(mesh, p.cfg.Guts.MeshesDir)
	_, loose = p.loose[key]
	_, archived = p.bsa[key]
	return loose, archived
}

// IsGroundcover reports whether the mesh exists in the indexed assets and
// whether its root node name matches one of the groundcover markers.
func (p *Probe) IsGroundcover(mesh string) (bool, bool, error) {
	key := normalizeMeshPath(mesh, p.cfg.Guts.MeshesDir)
	if cached, ok := p.cache.Get(key); ok {
		return cached.exists, cached.groundcover, nil
	}
	result, err := p.classify(key)
	if err != nil {
		return false, false, err
	}
	p.cache.Add(key, result)
	return result.exists, result.groundcover, nil
}

func (p *Probe) classify(key string) (classification, error) {
	p.mu.Lock()
	loose, haveLoose := p.loose[key]
	archived, haveArchived := p.bsa[key]
	p.mu.Unlock()
	var header []byte
	var err error
	switch {
	case !haveLoose && !haveArchived:
		return classification{}, nil
	case haveLoose && (!haveArchived || p.preferLoose || !loose.modTime.Before(archived.modTime)):
		header, err = readPrefix(loose.path, nifProbeSize)
	default:
		header, err = archived.bsa.ReadFilePrefix(archived.index, nifProbeSize)
	}
	if err != nil {
		return classification{}, err
	}
	rootName, err := RootNodeName(header)
	if err != nil {
		// An unreadable header means the mesh exists but is not grass.
		p.log.Msg(2, "    Mesh %q: failed to read root node name: %v", key, err)
		return classification{exists: true}, nil
	}
	return classification{exists: true, groundcover: p.matchesMarker(rootName)}, nil
}

func (p *Probe) matchesMarker(rootName string) bool {
	nameLow := strings.ToLower(rootName)
	for _, marker := range p.cfg.Advanced.GroundcoverMarkers {
		if strings.HasPrefix(nameLow, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func normalizeMeshPath(mesh, meshesDir string) string {
	normalized := strings.ToLower(strings.ReplaceAll(mesh, "\\", "/"))
	prefix := strings.ToLower(meshesDir) + "/"
	return strings.TrimPrefix(normalized, prefix)
}

func readPrefix(path string, n int) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mesh %q: %w", path, err)
	}
	defer file.Close()
	data := make([]byte, n)
	read, err := io.ReadFull(file, data)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return data[:read], nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh %q: %w", path, err)
	}
	return data, nil
}

// SortedMeshKeys lists indexed loose mesh keys; diagnostics print them in a
// stable order.
func (p *Probe) SortedMeshKeys() []string {
	keys := make([]string, 0, len(p.loose))
	for key := range p.loose {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
