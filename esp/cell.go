package esp

import (
	"encoding/binary"
	"fmt"
)

const interiorFlag = 0x01

// Grid is an exterior cell coordinate.
type Grid struct {
	X int32
	Y int32
}

// RefKey identifies a reference across plugins: the master index the owning
// plugin recorded (0 for the plugin's own references) and the object index.
type RefKey struct {
	MastIndex uint32
	RefrIndex uint32
}

// Reference is one placed instance inside a cell. Payload keeps every
// subrecord the merger has no opinion about, in source order.
type Reference struct {
	MastIndex      uint32
	RefrIndex      uint32
	ID             string
	Persistent     bool
	Scale          *float32
	Count          *uint32
	Deleted        bool
	MovedCell      *Grid
	HasDestination bool
	Payload        []Subrecord
}

// Key returns the reference's cross-plugin identity.
func (r *Reference) Key() RefKey {
	return RefKey{MastIndex: r.MastIndex, RefrIndex: r.RefrIndex}
}

// Clone deep-copies the reference.
func (r *Reference) Clone() *Reference {
	dup := *r
	if r.Scale != nil {
		scale := *r.Scale
		dup.Scale = &scale
	}
	if r.Count != nil {
		count := *r.Count
		dup.Count = &count
	}
	if r.MovedCell != nil {
		grid := *r.MovedCell
		dup.MovedCell = &grid
	}
	dup.Payload = make([]Subrecord, len(r.Payload))
	for i, sub := range r.Payload {
		dup.Payload[i] = Subrecord{Tag: sub.Tag, Data: append([]byte(nil), sub.Data...)}
	}
	return &dup
}

// Equal compares every decoded field and the opaque payload.
func (r *Reference) Equal(other *Reference) bool {
	if r.MastIndex != other.MastIndex || r.RefrIndex != other.RefrIndex ||
		r.ID != other.ID || r.Persistent != other.Persistent ||
		r.Deleted != other.Deleted || r.HasDestination != other.HasDestination {
		return false
	}
	if !equalFloat(r.Scale, other.Scale) || !equalUint(r.Count, other.Count) {
		return false
	}
	if (r.MovedCell == nil) != (other.MovedCell == nil) {
		return false
	}
	if r.MovedCell != nil && *r.MovedCell != *other.MovedCell {
		return false
	}
	if len(r.Payload) != len(other.Payload) {
		return false
	}
	for i := range r.Payload {
		if r.Payload[i].Tag != other.Payload[i].Tag ||
			string(r.Payload[i].Data) != string(other.Payload[i].Data) {
			return false
		}
	}
	return true
}

func equalFloat(a, b *float32) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func equalUint(a, b *uint32) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// Cell is the typed view of a CELL record: the scalar part plus the
// reference table.
type Cell struct {
	Flags       uint32
	Name        string
	DataFlags   uint32
	Grid        Grid
	Region      *string
	MapColor    []byte
	WaterHeight *float32
	Ambient     []byte
	Extra       []Subrecord
	References  []*Reference
}

// Interior reports whether the cell is an interior cell.
func (c *Cell) Interior() bool { return c.DataFlags&interiorFlag != 0 }

// DisplayName renders the cell name the way diagnostics print it: the name
// for interiors, the grid for exteriors.
func (c *Cell) DisplayName() string {
	if c.Interior() {
		return c.Name
	}
	return fmt.Sprintf("(%d, %d)", c.Grid.X, c.Grid.Y)
}

// DecodeCell decodes a CELL record into the typed view.
func DecodeCell(record *Record) (*Cell, error) {
	if record.Tag != "CELL" {
		return nil, fmt.Errorf("record is %s, not a CELL", record.Tag)
	}
	cell := &Cell{Flags: record.Flags}
	subs := record.Subs
	i := 0
scalars:
	for ; i < len(subs); i++ {
		sub := subs[i]
		switch sub.Tag {
		case "NAME":
			cell.Name = zstring(sub.Data)
		case "DATA":
			if len(sub.Data) < 12 {
				return nil, fmt.Errorf("%w: truncated CELL data", ErrCorrupted)
			}
			cell.DataFlags = leUint32(sub.Data)
			cell.Grid.X = int32(leUint32(sub.Data[4:]))
			cell.Grid.Y = int32(leUint32(sub.Data[8:]))
		case "RGNN":
			region := zstring(sub.Data)
			cell.Region = &region
		case "NAM5":
			cell.MapColor = append([]byte(nil), sub.Data...)
		case "WHGT":
			if len(sub.Data) < 4 {
				return nil, fmt.Errorf("%w: truncated CELL water height", ErrCorrupted)
			}
			height := leFloat32(sub.Data)
			cell.WaterHeight = &height
		case "AMBI":
			cell.Ambient = append([]byte(nil), sub.Data...)
		case "FRMR", "MVRF", "NAM0":
			break scalars
		default:
			cell.Extra = append(cell.Extra, sub)
		}
	}
	persistent := true
	var current *Reference
	var pendingMove *Grid
	flush := func() {
		if current != nil {
			cell.References = append(cell.References, current)
			current = nil
		}
	}
	for ; i < len(subs); i++ {
		sub := subs[i]
		switch sub.Tag {
		case "NAM0":
			flush()
			persistent = false
		case "MVRF":
			flush()
			if len(sub.Data) < 4 {
				return nil, fmt.Errorf("%w: truncated MVRF in cell %q", ErrCorrupted, cell.DisplayName())
			}
			// MVRF precedes the FRMR it applies to; CNDT with the target
			// grid follows it.
			pendingMove = &Grid{}
		case "CNDT":
			if pendingMove != nil && len(sub.Data) >= 8 {
				pendingMove.X = int32(leUint32(sub.Data))
				pendingMove.Y = int32(leUint32(sub.Data[4:]))
			}
		case "FRMR":
			flush()
			if len(sub.Data) < 4 {
				return nil, fmt.Errorf("%w: truncated FRMR in cell %q", ErrCorrupted, cell.DisplayName())
			}
			packed := leUint32(sub.Data)
			current = &Reference{
				MastIndex:  packed >> 24,
				RefrIndex:  packed & 0x00ffffff,
				Persistent: persistent,
				MovedCell:  pendingMove,
			}
			pendingMove = nil
		default:
			if current == nil {
				return nil, fmt.Errorf("%w: stray subrecord %s in cell %q reference table", ErrCorrupted, sub.Tag, cell.DisplayName())
			}
			switch sub.Tag {
			case "NAME":
				current.ID = zstring(sub.Data)
			case "XSCL":
				if len(sub.Data) >= 4 {
					scale := leFloat32(sub.Data)
					current.Scale = &scale
				}
			case "NAM9":
				if len(sub.Data) >= 4 {
					count := leUint32(sub.Data)
					current.Count = &count
				}
			case "DELE":
				current.Deleted = true
			case "DNAM", "DODT":
				current.HasDestination = true
				current.Payload = append(current.Payload, sub)
			default:
				current.Payload = append(current.Payload, sub)
			}
		}
	}
	flush()
	return cell, nil
}

// Encode rebuilds the generic CELL record. References must already be in
// the order they should appear on disk; persistent references are emitted
// before the NAM0 marker, the rest after it.
func (c *Cell) Encode() *Record {
	record := &Record{Tag: "CELL", Flags: c.Flags}
	record.Subs = append(record.Subs, Subrecord{Tag: "NAME", Data: encodeZString(c.Name)})
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, c.DataFlags)
	binary.LittleEndian.PutUint32(data[4:], uint32(c.Grid.X))
	binary.LittleEndian.PutUint32(data[8:], uint32(c.Grid.Y))
	record.Subs = append(record.Subs, Subrecord{Tag: "DATA", Data: data})
	if c.Region != nil {
		record.Subs = append(record.Subs, Subrecord{Tag: "RGNN", Data: encodeZString(*c.Region)})
	}
	if c.MapColor != nil {
		record.Subs = append(record.Subs, Subrecord{Tag: "NAM5", Data: c.MapColor})
	}
	if c.WaterHeight != nil {
		record.Subs = append(record.Subs, Subrecord{Tag: "WHGT", Data: putFloat32(*c.WaterHeight)})
	}
	if c.Ambient != nil {
		record.Subs = append(record.Subs, Subrecord{Tag: "AMBI", Data: c.Ambient})
	}
	record.Subs = append(record.Subs, c.Extra...)
	temporary := 0
	for _, ref := range c.References {
		if !ref.Persistent {
			temporary++
		}
	}
	nam0Written := false
	for _, ref := range c.References {
		if !ref.Persistent && !nam0Written {
			record.Subs = append(record.Subs, Subrecord{Tag: "NAM0", Data: putUint32(uint32(temporary))})
			nam0Written = true
		}
		record.Subs = ref.appendTo(record.Subs)
	}
	return record
}

func (r *Reference) appendTo(subs []Subrecord) []Subrecord {
	if r.MovedCell != nil {
		moved := make([]byte, 8)
		binary.LittleEndian.PutUint32(moved, uint32(r.MovedCell.X))
		binary.LittleEndian.PutUint32(moved[4:], uint32(r.MovedCell.Y))
		subs = append(subs,
			Subrecord{Tag: "MVRF", Data: putUint32(r.RefrIndex)},
			Subrecord{Tag: "CNDT", Data: moved},
		)
	}
	packed := r.MastIndex<<24 | r.RefrIndex&0x00ffffff
	subs = append(subs, Subrecord{Tag: "FRMR", Data: putUint32(packed)})
	subs = append(subs, Subrecord{Tag: "NAME", Data: encodeZString(r.ID)})
	if r.Scale != nil {
		subs = append(subs, Subrecord{Tag: "XSCL", Data: putFloat32(*r.Scale)})
	}
	if r.Count != nil {
		subs = append(subs, Subrecord{Tag: "NAM9", Data: putUint32(*r.Count)})
	}
	subs = append(subs, r.Payload...)
	if r.Deleted {
		subs = append(subs, Subrecord{Tag: "DELE", Data: putUint32(0)})
	}
	return subs
}
