// Package assets answers the merger's asset questions: does a mesh exist
// among loose files or BSA archives, and does its root node mark it as
// groundcover.
package assets

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// bsaMagic is the Morrowind-format archive signature (version 0x100).
const bsaMagic = 0x100

// BSA is a parsed Morrowind archive index: file names with their sizes and
// offsets. File payloads are read on demand, never mapped across calls.
type BSA struct {
	Path       string
	names      []string
	sizes      []uint32
	offsets    []uint32
	dataOffset int64
}

// OpenBSA reads the archive header and name table.
func OpenBSA(path string) (*BSA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()
	header := make([]byte, 12)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, fmt.Errorf("failed to read archive header of %q: %w", path, err)
	}
	magic := binary.LittleEndian.Uint32(header)
	if magic != bsaMagic {
		return nil, fmt.Errorf("archive %q has wrong magic number %d, expected %d (Morrowind-format BSA)",
			path, magic, bsaMagic)
	}
	metaSize := int(binary.LittleEndian.Uint32(header[4:]))
	numFiles := int(binary.LittleEndian.Uint32(header[8:]))
	meta := make([]byte, metaSize)
	if _, err := io.ReadFull(file, meta); err != nil {
		return nil, fmt.Errorf("failed to read archive index of %q: %w", path, err)
	}
	if metaSize < numFiles*12 {
		return nil, fmt.Errorf("archive %q index is shorter than its file table", path)
	}
	bsa := &BSA{
		Path:       path,
		sizes:      make([]uint32, numFiles),
		offsets:    make([]uint32, numFiles),
		dataOffset: int64(12 + metaSize + 8*numFiles),
	}
	for i := 0; i < numFiles; i++ {
		bsa.sizes[i] = binary.LittleEndian.Uint32(meta[i*8:])
		bsa.offsets[i] = binary.LittleEndian.Uint32(meta[i*8+4:])
	}
	nameTable := string(meta[numFiles*12:])
	bsa.names = strings.Split(strings.TrimRight(nameTable, "\x00"), "\x00")
	if len(bsa.names) < numFiles {
		return nil, fmt.Errorf("archive %q name table holds %d names for %d files", path, len(bsa.names), numFiles)
	}
	bsa.names = bsa.names[:numFiles]
	return bsa, nil
}

// Names lists the archived file paths (backslash-separated, as stored).
func (b *BSA) Names() []string { return b.names }

// ReadFile extracts one archived file by index.
func (b *BSA) ReadFile(index int) ([]byte, error) {
	if index < 0 || index >= len(b.names) {
		return nil, fmt.Errorf("file index %d outside archive %q", index, b.Path)
	}
	file, err := os.Open(b.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %q: %w", b.Path, err)
	}
	defer file.Close()
	data := make([]byte, b.sizes[index])
	if _, err := file.ReadAt(data, b.dataOffset+int64(b.offsets[index])); err != nil {
		return nil, fmt.Errorf("failed to read %q from archive %q: %w", b.names[index], b.Path, err)
	}
	return data, nil
}

// ReadFilePrefix extracts at most n leading bytes of one archived file;
// enough for header sniffing without pulling the whole mesh.
func (b *BSA) ReadFilePrefix(index int, n int) ([]byte, error) {
	if index < 0 || index >= len(b.names) {
		return nil, fmt.Errorf("file index %d outside archive %q", index, b.Path)
	}
	size := int(b.sizes[index])
	if n > size {
		n = size
	}
	file, err := os.Open(b.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %q: %w", b.Path, err)
	}
	defer file.Close()
	data := make([]byte, n)
	if _, err := file.ReadAt(data, b.dataOffset+int64(b.offsets[index])); err != nil {
		return nil, fmt.Errorf("failed to read %q from archive %q: %w", b.names[index], b.Path, err)
	}
	return data, nil
}
