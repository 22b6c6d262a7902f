package esp

import (
	"encoding/binary"
	"fmt"
)

const vtexSide = 16

// Land is the typed view of a LAND record. Only the grid and the VTEX
// texture index table are decoded; heights, normals and colors stay opaque.
type Land struct {
	Flags    uint32
	Grid     Grid
	Textures [][]uint16
	Extra    []Subrecord
}

// DecodeLand decodes a LAND record.
func DecodeLand(record *Record) (*Land, error) {
	if record.Tag != "LAND" {
		return nil, fmt.Errorf("record is %s, not a LAND", record.Tag)
	}
	land := &Land{Flags: record.Flags}
	gridSeen := false
	for _, sub := range record.Subs {
		switch sub.Tag {
		case "INTV":
			if len(sub.Data) < 8 {
				return nil, fmt.Errorf("%w: truncated LAND grid", ErrCorrupted)
			}
			land.Grid.X = int32(leUint32(sub.Data))
			land.Grid.Y = int32(leUint32(sub.Data[4:]))
			gridSeen = true
		case "VTEX":
			if len(sub.Data) < vtexSide*vtexSide*2 {
				return nil, fmt.Errorf("%w: truncated LAND texture table", ErrCorrupted)
			}
			land.Textures = make([][]uint16, vtexSide)
			for row := 0; row < vtexSide; row++ {
				line := make([]uint16, vtexSide)
				for col := 0; col < vtexSide; col++ {
					line[col] = binary.LittleEndian.Uint16(sub.Data[(row*vtexSide+col)*2:])
				}
				land.Textures[row] = line
			}
		default:
			land.Extra = append(land.Extra, sub)
		}
	}
	if !gridSeen {
		return nil, fmt.Errorf("%w: LAND record has no grid", ErrCorrupted)
	}
	return land, nil
}

// Encode rebuilds the generic LAND record.
func (l *Land) Encode() *Record {
	record := &Record{Tag: "LAND", Flags: l.Flags}
	grid := make([]byte, 8)
	binary.LittleEndian.PutUint32(grid, uint32(l.Grid.X))
	binary.LittleEndian.PutUint32(grid[4:], uint32(l.Grid.Y))
	record.Subs = append(record.Subs, Subrecord{Tag: "INTV", Data: grid})
	if l.Textures != nil {
		data := make([]byte, vtexSide*vtexSide*2)
		for row := 0; row < vtexSide; row++ {
			for col := 0; col < vtexSide; col++ {
				binary.LittleEndian.PutUint16(data[(row*vtexSide+col)*2:], l.Textures[row][col])
			}
		}
		record.Subs = append(record.Subs, Subrecord{Tag: "VTEX", Data: data})
	}
	record.Subs = append(record.Subs, l.Extra...)
	return record
}

// Ltex is the typed view of a LTEX record.
type Ltex struct {
	Flags    uint32
	ID       string
	Index    uint32
	FileName string
	Extra    []Subrecord
}

// DecodeLtex decodes a LTEX record.
func DecodeLtex(record *Record) (*Ltex, error) {
	if record.Tag != "LTEX" {
		return nil, fmt.Errorf("record is %s, not a LTEX", record.Tag)
	}
	ltex := &Ltex{Flags: record.Flags}
	for _, sub := range record.Subs {
		switch sub.Tag {
		case "NAME":
			ltex.ID = zstring(sub.Data)
		case "INTV":
			if len(sub.Data) < 4 {
				return nil, fmt.Errorf("%w: truncated LTEX index", ErrCorrupted)
			}
			ltex.Index = leUint32(sub.Data)
		case "DATA":
			ltex.FileName = zstring(sub.Data)
		default:
			ltex.Extra = append(ltex.Extra, sub)
		}
	}
	if ltex.ID == "" {
		return nil, fmt.Errorf("%w: LTEX record has no id", ErrCorrupted)
	}
	return ltex, nil
}

// Encode rebuilds the generic LTEX record.
func (l *Ltex) Encode() *Record {
	record := &Record{Tag: "LTEX", Flags: l.Flags}
	record.Subs = append(record.Subs,
		Subrecord{Tag: "NAME", Data: encodeZString(l.ID)},
		Subrecord{Tag: "INTV", Data: putUint32(l.Index)},
		Subrecord{Tag: "DATA", Data: encodeZString(l.FileName)},
	)
	record.Subs = append(record.Subs, l.Extra...)
	return record
}
