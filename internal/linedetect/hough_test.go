package linedetect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultHough() HoughParams {
	return DefaultConfig().Hough
}

func TestProbabilisticHough_VerticalLine(t *testing.T) {
	edges := maskFromRuns(100, 200, func(x, y int) bool {
		return x == 30 && y >= 10 && y <= 189
	})
	defer edges.release()

	segments, err := probabilisticHough(context.Background(), edges, defaultHough())
	require.NoError(t, err)
	assert.Equal(t, []Segment{{X1: 30, Y1: 10, X2: 30, Y2: 189}}, segments)
	assert.Zero(t, edges.count(), "segment pixels are consumed")
}

func TestProbabilisticHough_HorizontalLine(t *testing.T) {
	edges := maskFromRuns(200, 100, func(x, y int) bool {
		return y == 50 && x >= 5 && x <= 150
	})
	defer edges.release()

	segments, err := probabilisticHough(context.Background(), edges, defaultHough())
	require.NoError(t, err)
	assert.Equal(t, []Segment{{X1: 5, Y1: 50, X2: 150, Y2: 50}}, segments)
}

func TestProbabilisticHough_GapHandling(t *testing.T) {
	broken := func(x, y int) bool {
		return x == 30 && ((y >= 10 && y <= 69) || (y >= 130 && y <= 199))
	}

	t.Run("gap bridged", func(t *testing.T) {
		edges := maskFromRuns(100, 220, broken)
		defer edges.release()

		segments, err := probabilisticHough(context.Background(), edges, defaultHough())
		require.NoError(t, err)
		assert.Equal(t, []Segment{{X1: 30, Y1: 10, X2: 30, Y2: 199}}, segments)
	})

	t.Run("gap too wide leaves short pieces", func(t *testing.T) {
		edges := maskFromRuns(100, 220, broken)
		defer edges.release()

		p := defaultHough()
		p.MaxGap = 40
		segments, err := probabilisticHough(context.Background(), edges, p)
		require.NoError(t, err)
		assert.Empty(t, segments)
	})
}

func TestProbabilisticHough_BelowThreshold(t *testing.T) {
	edges := maskFromRuns(100, 100, func(x, y int) bool {
		return x == 10 && y < 50
	})
	defer edges.release()

	segments, err := probabilisticHough(context.Background(), edges, defaultHough())
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestProbabilisticHough_MaxLines(t *testing.T) {
	edges := maskFromRuns(100, 200, func(x, y int) bool {
		return (x == 20 || x == 60) && y >= 10 && y <= 189
	})
	defer edges.release()

	p := defaultHough()
	p.MaxLines = 1
	segments, err := probabilisticHough(context.Background(), edges, p)
	require.NoError(t, err)
	assert.Len(t, segments, 1)
}

func TestProbabilisticHough_Cancelled(t *testing.T) {
	edges := maskFromRuns(100, 200, func(x, y int) bool {
		return x == 30 && y >= 10 && y <= 189
	})
	defer edges.release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := probabilisticHough(ctx, edges, defaultHough())
	assert.ErrorIs(t, err, context.Canceled)
}
