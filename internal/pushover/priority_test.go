package pushover

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want Priority
	}{
		{name: "lowest", want: PriorityLowest},
		{name: "low", want: PriorityLow},
		{name: "normal", want: PriorityNormal},
		{name: "", want: PriorityNormal},
		{name: "high", want: PriorityHigh},
		{name: "emergency", want: PriorityEmergency},
	}
	for _, tt := range tests {
		got, err := ParsePriority(tt.name)
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.want, got)
	}

	_, err := ParsePriority("urgent")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPriorityValid(t *testing.T) {
	t.Parallel()
	for p := PriorityLowest; p <= PriorityEmergency; p++ {
		require.True(t, p.Valid(), p.String())
	}
	require.False(t, Priority(-3).Valid())
	require.False(t, Priority(3).Valid())
	require.Equal(t, "priority(7)", Priority(7).String())
}
