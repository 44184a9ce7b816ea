package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitState(t *testing.T) {
	tests := []struct {
		name       string
		rng        Range
		checkpoint *Checkpoint
		want       ProcessorState
		resume     Resume
		wantErr    error
	}{
		{
			name:   "fresh start",
			rng:    Range{From: 100, To: 1000},
			want:   ProcessorState{LastScannedBlock: 99, LastProcessedEvent: "0-0"},
			resume: ResumeFresh,
		},
		{
			name:       "resume inside range",
			rng:        Range{From: 100, To: 1000},
			checkpoint: &Checkpoint{EventID: "150-2", LastScannedBlock: 150},
			want:       ProcessorState{LastScannedBlock: 150, LastProcessedEvent: "150-2"},
			resume:     ResumeCheckpoint,
		},
		{
			name:       "checkpoint right before range start",
			rng:        Range{From: 100, To: 1000},
			checkpoint: &Checkpoint{EventID: "99-0", LastScannedBlock: 99},
			want:       ProcessorState{LastScannedBlock: 99, LastProcessedEvent: "99-0"},
			resume:     ResumeCheckpoint,
		},
		{
			name:       "checkpoint behind range",
			rng:        Range{From: 100, To: 1000},
			checkpoint: &Checkpoint{EventID: "50-1", LastScannedBlock: 50},
			want:       ProcessorState{LastScannedBlock: 99, LastProcessedEvent: "50-1"},
			resume:     ResumeRewound,
		},
		{
			name:       "checkpoint beyond range",
			rng:        Range{From: 100, To: 1000},
			checkpoint: &Checkpoint{EventID: "1200-0", LastScannedBlock: 1200},
			wantErr:    ErrBeyondRange,
		},
		{
			name:       "checkpoint at range end",
			rng:        Range{From: 100, To: 1000},
			checkpoint: &Checkpoint{EventID: "1000-0", LastScannedBlock: 1000},
			wantErr:    ErrBeyondRange,
		},
		{
			name:       "unbounded range",
			rng:        NewRange(0, 0),
			checkpoint: &Checkpoint{EventID: "5-0", LastScannedBlock: 5},
			want:       ProcessorState{LastScannedBlock: 5, LastProcessedEvent: "5-0"},
			resume:     ResumeCheckpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, resume, err := InitState(tt.rng, tt.checkpoint)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.resume, resume)
		})
	}
}

func TestEventID(t *testing.T) {
	require.Equal(t, "0-0", FormatEventID(0, 0))
	require.Equal(t, "150-2", FormatEventID(150, 2))

	h, i, err := ParseEventID("150-2")
	require.NoError(t, err)
	require.Equal(t, int64(150), h)
	require.Equal(t, 2, i)

	h, i, err = ParseEventID("0000000150-000002")
	require.NoError(t, err)
	require.Equal(t, int64(150), h)
	require.Equal(t, 2, i)

	for _, bad := range []string{"", "150", "a-1", "1-b", "-1-2"} {
		_, _, err := ParseEventID(bad)
		require.ErrorIs(t, err, ErrInvalidEventID, bad)
	}
}

func TestSortableEventID(t *testing.T) {
	a, err := SortableEventID("99-0")
	require.NoError(t, err)
	b, err := SortableEventID("150-2")
	require.NoError(t, err)
	c, err := SortableEventID("150-10")
	require.NoError(t, err)

	require.Equal(t, "0000000099-000000", a)
	require.Less(t, a, b)
	require.Less(t, b, c)
}

func TestRange(t *testing.T) {
	r := NewRange(10, 0)
	require.Equal(t, Unbounded, r.To)
	require.True(t, r.Contains(1<<40))
	require.False(t, r.Contains(9))
	require.True(t, Range{From: 5, To: 4}.Empty())
	require.Equal(t, "[1, 2]", Range{From: 1, To: 2}.String())
}
