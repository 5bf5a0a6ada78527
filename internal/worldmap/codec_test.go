package worldmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	m := New(3, 3)
	m.Set(1, 1, Tile{Type: Blocked})
	m.Set(0, 0, Tile{Type: Passable, Weight: 7})

	data := Marshal(m)
	require.Len(t, data, 17, "8 byte header plus 9 tiles")

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m.Width, got.Width)
	assert.Equal(t, m.Height, got.Height)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, m.At(x, y), got.At(x, y), "tile (%d,%d)", x, y)
		}
	}
}

func TestMarshalRoundTripAllWeights(t *testing.T) {
	m := New(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			ty := Passable
			if (x+y)%3 == 0 {
				ty = Blocked
			}
			m.Set(x, y, Tile{Type: ty, Weight: uint8((x*8 + y) % 64)})
		}
	}
	got, err := Unmarshal(Marshal(m))
	require.NoError(t, err)
	assert.Equal(t, m.Tiles, got.Tiles)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestUnmarshalRejectsZeroDimensions(t *testing.T) {
	data := Marshal(New(2, 2))
	// Stamp a zero width into the header.
	data[0], data[1], data[2], data[3] = 0, 0, 0, 0
	_, err := Unmarshal(data)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestUnmarshalRejectsSizeMismatch(t *testing.T) {
	data := Marshal(New(3, 3))

	_, err := Unmarshal(data[:len(data)-1])
	assert.ErrorIs(t, err, ErrSizeFormat, "short body")

	_, err = Unmarshal(append(data, 0))
	assert.ErrorIs(t, err, ErrSizeFormat, "long body")
}

func TestMapFileRoundTrip(t *testing.T) {
	m := New(4, 5)
	m.Set(2, 3, Tile{Type: Blocked})

	path := filepath.Join(t.TempDir(), "arena"+FileExt)
	require.NoError(t, WriteFile(m, path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.Tiles, got.Tiles)
}
