package engine

import (
	"testing"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/stretchr/testify/assert"
)

func snapYes(s domain.SideState) domain.BookSnapshot {
	return domain.BookSnapshot{Yes: s}
}

func TestQueuePosition_WithDepthLevels(t *testing.T) {
	snap := snapYes(domain.SideState{
		BestBid: 0.50,
		Depth:   []domain.PriceLevel{{Price: 0.49, CumulativeSize: 400}, {Price: 0.50, CumulativeSize: 150}},
	})
	assert.Equal(t, 400.0, QueuePosition(snap, domain.SideYes, 0.49))
	assert.Equal(t, 150.0, QueuePosition(snap, domain.SideYes, 0.50))
}

func TestQueuePosition_TopOfBookOnly(t *testing.T) {
	snap := snapYes(domain.SideState{BestBid: 0.50, BestBidSize: 120, TotalBidDepth: 900})

	assert.Equal(t, 120.0, QueuePosition(snap, domain.SideYes, 0.50))
	assert.Equal(t, 0.0, QueuePosition(snap, domain.SideYes, 0.52))
	assert.Equal(t, 900.0, QueuePosition(snap, domain.SideYes, 0.45))
	assert.Equal(t, 0.0, QueuePosition(snap, domain.SideNo, 0.45))
}

func TestTakerVolume_OnlyDecreasesCount(t *testing.T) {
	prev := snapYes(domain.SideState{Depth: []domain.PriceLevel{{Price: 0.50, CumulativeSize: 200}}})
	curr := snapYes(domain.SideState{Depth: []domain.PriceLevel{{Price: 0.50, CumulativeSize: 150}}})

	assert.Equal(t, 50.0, TakerVolume(prev, curr, domain.SideYes, 0.50))
	assert.Equal(t, 0.0, TakerVolume(curr, prev, domain.SideYes, 0.50))
}

func TestTakerVolume_BestBidFallback(t *testing.T) {
	prev := snapYes(domain.SideState{BestBid: 0.50, BestBidSize: 80})
	curr := snapYes(domain.SideState{BestBid: 0.50, BestBidSize: 30})
	moved := snapYes(domain.SideState{BestBid: 0.51, BestBidSize: 10})

	assert.Equal(t, 50.0, TakerVolume(prev, curr, domain.SideYes, 0.50))
	assert.Equal(t, 0.0, TakerVolume(prev, moved, domain.SideYes, 0.50))
}
