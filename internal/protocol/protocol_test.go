package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KDT2006/chaser/internal/grid"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"wu", Command{MethodWalk, grid.Up}},
		{"ld", Command{MethodLook, grid.Down}},
		{"sl", Command{MethodSearch, grid.Left}},
		{"pr", Command{MethodPut, grid.Right}},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.Encode())
	}
}

func TestParseCommandRejects(t *testing.T) {
	for _, bad := range []string{"", "w", "wuu", "xz", "xu", "wz", "WU", "u w"} {
		cmd, err := ParseCommand(bad)
		assert.ErrorIs(t, err, ErrMalformedCommand, bad)
		assert.True(t, cmd.IsUnknown())
	}
}

func TestStatusEncode(t *testing.T) {
	st := Status{
		GameOver: false,
		Cells: [9]grid.Cell{
			grid.CellBlock, grid.CellBlock, grid.CellBlock,
			grid.CellEmpty, grid.CellCool, grid.CellHot,
			grid.CellItem, grid.CellCoolAndHot, grid.CellEmpty,
		},
	}
	assert.Equal(t, "1222011310", st.Encode())

	st.GameOver = true
	assert.Equal(t, "0222011310", st.Encode())
}

func TestStatusRoundTrip(t *testing.T) {
	// every reachable state, at every position, with both flags
	states := []grid.Cell{grid.CellEmpty, grid.CellBlock, grid.CellItem, grid.CellCool, grid.CellHot, grid.CellCoolAndHot}
	for _, over := range []bool{true, false} {
		for pos := 0; pos < 9; pos++ {
			for _, c := range states {
				var st Status
				st.GameOver = over
				for i := range st.Cells {
					st.Cells[i] = grid.CellEmpty
				}
				st.Cells[pos] = c

				got, err := DecodeStatus(st.Encode())
				require.NoError(t, err)
				assert.Equal(t, over, got.GameOver)
				for i := range st.Cells {
					if st.Cells[i].Occupied() {
						assert.True(t, got.Cells[i].Occupied())
						continue
					}
					assert.Equal(t, st.Cells[i], got.Cells[i])
				}
				assert.Equal(t, st.Encode(), got.Encode())
			}
		}
	}
}

func TestDecodeStatusRejects(t *testing.T) {
	for _, bad := range []string{"", "122201131", "12220113100", "2222011310", "1222011390"} {
		_, err := DecodeStatus(bad)
		assert.ErrorIs(t, err, ErrMalformedStatus, bad)
	}
}
