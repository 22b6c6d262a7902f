package assets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// nifProbeSize bounds how much of a mesh is read for classification: the
// header line, the version, the block counts and the root node name all fit
// well inside it.
const nifProbeSize = 256

// RootNodeName extracts the name of the first scene node from NIF header
// bytes: the version line, a version dword, the block count, then the first
// block's type string and name string.
func RootNodeName(data []byte) (string, error) {
	newline := bytes.IndexByte(data, '\n')
	if newline < 0 {
		return "", fmt.Errorf("mesh header has no version line")
	}
	cursor := newline + 1
	// version dword + number of blocks
	if len(data) < cursor+8 {
		return "", fmt.Errorf("mesh header is truncated")
	}
	cursor += 8
	typeName, next, err := readNifString(data, cursor)
	if err != nil {
		return "", fmt.Errorf("failed to read root block type: %w", err)
	}
	if !strings.HasPrefix(typeName, "Ni") {
		return "", fmt.Errorf("root block type %q is not a scene node", typeName)
	}
	name, _, err := readNifString(data, next)
	if err != nil {
		return "", fmt.Errorf("failed to read root node name: %w", err)
	}
	return name, nil
}

func readNifString(data []byte, offset int) (string, int, error) {
	if len(data) < offset+4 {
		return "", 0, fmt.Errorf("string length is truncated")
	}
	length := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if length < 0 || length > nifProbeSize || len(data) < offset+length {
		return "", 0, fmt.Errorf("string of length %d overruns probe window", length)
	}
	return string(data[offset : offset+length]), offset + length, nil
}

// EncodeNifHeader builds a minimal mesh header with the given root node
// name; tests and mesh rewrites use it.
func EncodeNifHeader(rootName string) []byte {
	var b bytes.Buffer
	b.WriteString("NetImmerse File Format, Version 4.0.0.2\n")
	b.Write(binary.LittleEndian.AppendUint32(nil, 0x04000002))
	b.Write(binary.LittleEndian.AppendUint32(nil, 1))
	b.Write(binary.LittleEndian.AppendUint32(nil, uint32(len("NiNode"))))
	b.WriteString("NiNode")
	b.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(rootName))))
	b.WriteString(rootName)
	return b.Bytes()
}
