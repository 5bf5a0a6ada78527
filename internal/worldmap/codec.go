// Binary map format: an 8-byte little-endian header (u32 width, u32 height)
// followed by one byte per tile in row-major order. Bits 0-1 carry the tile
// type, bits 2-7 the weight (0 = default).
package worldmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const headerSize = 8

// FileExt is the extension used for file-persisted map artifacts.
const FileExt = ".map"

var (
	ErrTruncated  = errors.New("worldmap: data shorter than header")
	ErrBadHeader  = errors.New("worldmap: zero width or height")
	ErrSizeFormat = errors.New("worldmap: data length does not match header")
)

// Marshal serializes a map into the binary format.
func Marshal(m *TileMap) []byte {
	buf := make([]byte, headerSize+m.Width*m.Height)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.Height))
	i := headerSize
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			t := m.Tiles[y][x]
			buf[i] = byte(t.Type)&0x03 | (t.Weight&MaxWeight)<<2
			i++
		}
	}
	return buf
}

// Unmarshal parses the binary format. It refuses truncated or oversized
// payloads rather than constructing a partial map.
func Unmarshal(data []byte) (*TileMap, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	width := int(binary.LittleEndian.Uint32(data[0:4]))
	height := int(binary.LittleEndian.Uint32(data[4:8]))
	if width <= 0 || height <= 0 {
		return nil, ErrBadHeader
	}
	if int64(len(data)) != int64(headerSize)+int64(width)*int64(height) {
		return nil, fmt.Errorf("%w: got %d bytes for %dx%d", ErrSizeFormat, len(data), width, height)
	}

	m := New(width, height)
	i := headerSize
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b := data[i]
			m.Tiles[y][x] = Tile{
				Type:   TileType(b & 0x03),
				Weight: (b >> 2) & MaxWeight,
			}
			i++
		}
	}
	return m, nil
}

// WriteFile persists a map as a .map artifact.
func WriteFile(m *TileMap, path string) error {
	if err := os.WriteFile(path, Marshal(m), 0o644); err != nil {
		return fmt.Errorf("write map: %w", err)
	}
	return nil
}

// ReadFile loads a .map artifact.
func ReadFile(path string) (*TileMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	return Unmarshal(data)
}
