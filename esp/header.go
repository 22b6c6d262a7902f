package esp

import (
	"encoding/binary"
	"fmt"
)

const (
	headerAuthorLen      = 32
	headerDescriptionLen = 256
	hedrSize             = 4 + 4 + headerAuthorLen + headerDescriptionLen + 4
)

// Master is one dependency entry of a plugin header: the master's file name
// and its size at the time the plugin was saved.
type Master struct {
	Name string
	Size uint64
}

// Header is the typed view of a TES3 record.
type Header struct {
	Version     float32
	FileType    uint32
	Author      string
	Description string
	NumRecords  uint32
	Masters     []Master
}

// DecodeHeader decodes a TES3 record.
func DecodeHeader(record *Record) (*Header, error) {
	if record.Tag != "TES3" {
		return nil, fmt.Errorf("record is %s, not a TES3 header", record.Tag)
	}
	hedr := record.Sub("HEDR")
	if hedr == nil || len(hedr.Data) < hedrSize {
		return nil, fmt.Errorf("%w: TES3 header lacks a valid HEDR subrecord", ErrCorrupted)
	}
	header := &Header{
		Version:     leFloat32(hedr.Data),
		FileType:    leUint32(hedr.Data[4:]),
		Author:      zstring(hedr.Data[8 : 8+headerAuthorLen]),
		Description: zstring(hedr.Data[8+headerAuthorLen : 8+headerAuthorLen+headerDescriptionLen]),
		NumRecords:  leUint32(hedr.Data[8+headerAuthorLen+headerDescriptionLen:]),
	}
	var pending string
	havePending := false
	for _, sub := range record.Subs {
		switch sub.Tag {
		case "MAST":
			pending = zstring(sub.Data)
			havePending = true
		case "DATA":
			if !havePending {
				return nil, fmt.Errorf("%w: master size without master name in header", ErrCorrupted)
			}
			if len(sub.Data) < 8 {
				return nil, fmt.Errorf("%w: truncated master size in header", ErrCorrupted)
			}
			header.Masters = append(header.Masters, Master{
				Name: pending,
				Size: binary.LittleEndian.Uint64(sub.Data),
			})
			havePending = false
		}
	}
	if havePending {
		return nil, fmt.Errorf("%w: master name without size in header", ErrCorrupted)
	}
	return header, nil
}

// Encode rebuilds the generic TES3 record.
func (h *Header) Encode() *Record {
	hedr := make([]byte, hedrSize)
	copy(hedr, putFloat32(h.Version))
	binary.LittleEndian.PutUint32(hedr[4:], h.FileType)
	copy(hedr[8:8+headerAuthorLen], truncateFixed(h.Author, headerAuthorLen))
	copy(hedr[8+headerAuthorLen:], truncateFixed(h.Description, headerDescriptionLen))
	binary.LittleEndian.PutUint32(hedr[8+headerAuthorLen+headerDescriptionLen:], h.NumRecords)
	record := &Record{Tag: "TES3", Subs: []Subrecord{{Tag: "HEDR", Data: hedr}}}
	for _, master := range h.Masters {
		size := make([]byte, 8)
		binary.LittleEndian.PutUint64(size, master.Size)
		record.Subs = append(record.Subs,
			Subrecord{Tag: "MAST", Data: encodeZString(master.Name)},
			Subrecord{Tag: "DATA", Data: size},
		)
	}
	return record
}

func truncateFixed(s string, max int) []byte {
	data := []byte(s)
	if len(data) >= max {
		data = data[:max-1]
	}
	return data
}
