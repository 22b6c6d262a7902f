package esp

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Plugin is a fully materialized plugin file.
type Plugin struct {
	Records []*Record
}

// Read loads and parses a plugin file. The first record must be a TES3
// header; any record tag outside the TES3 set returns an UnknownTagError so
// the caller can skip the plugin.
func Read(path string) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin file: %w", err)
	}
	plugin, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plugin %q: %w", path, err)
	}
	return plugin, nil
}

// Decode parses plugin bytes into records.
func Decode(data []byte) (*Plugin, error) {
	plugin := &Plugin{}
	offset := 0
	for offset < len(data) {
		record, next, err := decodeRecord(data, offset)
		if err != nil {
			return nil, err
		}
		if len(plugin.Records) == 0 && record.Tag != "TES3" {
			return nil, fmt.Errorf("%w: first record is %q, not a TES3 header", ErrCorrupted, record.Tag)
		}
		plugin.Records = append(plugin.Records, record)
		offset = next
	}
	if len(plugin.Records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrCorrupted)
	}
	return plugin, nil
}

func decodeRecord(data []byte, offset int) (*Record, int, error) {
	if len(data)-offset < 16 {
		return nil, 0, fmt.Errorf("%w: truncated record header at offset %d", ErrCorrupted, offset)
	}
	tag := string(data[offset : offset+4])
	if !IsKnownTag(tag) {
		return nil, 0, &UnknownTagError{Tag: tag}
	}
	size := int(binary.LittleEndian.Uint32(data[offset+4:]))
	record := &Record{
		Tag:     tag,
		Unknown: binary.LittleEndian.Uint32(data[offset+8:]),
		Flags:   binary.LittleEndian.Uint32(data[offset+12:]),
	}
	payloadStart := offset + 16
	payloadEnd := payloadStart + size
	if payloadEnd > len(data) {
		return nil, 0, fmt.Errorf("%w: record %s at offset %d overruns file", ErrCorrupted, tag, offset)
	}
	cursor := payloadStart
	for cursor < payloadEnd {
		if payloadEnd-cursor < 8 {
			return nil, 0, fmt.Errorf("%w: truncated subrecord header in %s record", ErrCorrupted, tag)
		}
		subTag := string(data[cursor : cursor+4])
		subSize := int(binary.LittleEndian.Uint32(data[cursor+4:]))
		subEnd := cursor + 8 + subSize
		if subEnd > payloadEnd {
			return nil, 0, fmt.Errorf("%w: subrecord %s overruns %s record", ErrCorrupted, subTag, tag)
		}
		record.Subs = append(record.Subs, Subrecord{
			Tag:  subTag,
			Data: append([]byte(nil), data[cursor+8:subEnd]...),
		})
		cursor = subEnd
	}
	return record, payloadEnd, nil
}
