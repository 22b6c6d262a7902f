package esp

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Encode serializes the plugin back into file bytes, recomputing every
// record and subrecord size.
func (p *Plugin) Encode() []byte {
	size := 0
	for _, record := range p.Records {
		size += 16 + record.payloadSize()
	}
	data := make([]byte, 0, size)
	for _, record := range p.Records {
		data = record.appendTo(data)
	}
	return data
}

// Write serializes the plugin to the given path.
func (p *Plugin) Write(path string) error {
	if err := os.WriteFile(path, p.Encode(), 0o644); err != nil {
		return fmt.Errorf("failed to write plugin file: %w", err)
	}
	return nil
}

func (r *Record) payloadSize() int {
	size := 0
	for _, sub := range r.Subs {
		size += 8 + len(sub.Data)
	}
	return size
}

func (r *Record) appendTo(data []byte) []byte {
	data = append(data, r.Tag...)
	data = binary.LittleEndian.AppendUint32(data, uint32(r.payloadSize()))
	data = binary.LittleEndian.AppendUint32(data, r.Unknown)
	data = binary.LittleEndian.AppendUint32(data, r.Flags)
	for _, sub := range r.Subs {
		data = append(data, sub.Tag...)
		data = binary.LittleEndian.AppendUint32(data, uint32(len(sub.Data)))
		data = append(data, sub.Data...)
	}
	return data
}
