package memutils

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var alignTestCases = map[string]struct {
	Value     int
	Alignment int
	Up        int
	Down      int
}{
	"Already Aligned": {Value: 64, Alignment: 16, Up: 64, Down: 64},
	"Round Up":        {Value: 65, Alignment: 16, Up: 80, Down: 64},
	"Zero Value":      {Value: 0, Alignment: 256, Up: 0, Down: 0},
	"Unit Alignment":  {Value: 37, Alignment: 1, Up: 37, Down: 37},
	"Zero Alignment":  {Value: 37, Alignment: 0, Up: 37, Down: 37},
	"Non Power Of 2":  {Value: 50, Alignment: 24, Up: 72, Down: 48},
}

func TestAlign(t *testing.T) {
	for name, testCase := range alignTestCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, testCase.Up, AlignUp(testCase.Value, testCase.Alignment))
			require.Equal(t, testCase.Down, AlignDown(testCase.Value, testCase.Alignment))
			require.True(t, IsAligned(testCase.Up, testCase.Alignment))
		})
	}
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, CheckPow2(uint(1), "one"))
	require.NoError(t, CheckPow2(uint(4096), "page"))

	err := CheckPow2(uint(48), "alignment")
	require.Error(t, err)
	require.True(t, errors.Is(err, PowerOfTwoError))
	require.Equal(t, "alignment is 48: number must be a power of two", err.Error())

	require.Error(t, CheckPow2(0, "zero"))
}
