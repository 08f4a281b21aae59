package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/guild-ledger/internal/money"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		score    int
		expected string
	}{
		{850, "excellent"},
		{740, "excellent"},
		{739, "good"},
		{670, "good"},
		{669, "fair"},
		{580, "fair"},
		{579, "poor"},
		{-10, "poor"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, TierFor(tt.score).Name, "score %d", tt.score)
	}
}

func TestSchedule_DefaultLadder(t *testing.T) {
	offers := Schedule(nil, 800)

	require.Len(t, offers, MaxOffers)
	assert.True(t, offers[0].Principal.Equal(money.New(50_000)))
	assert.Equal(t, int64(660), offers[0].AprBps)
	assert.Equal(t, 15, offers[0].TermDays)

	last := offers[len(offers)-1]
	assert.True(t, last.Principal.Equal(money.New(500_000)))
	assert.Equal(t, int64(1200), last.AprBps)
	assert.Equal(t, 30, last.TermDays)
}

func TestSchedule_CapsAndDeduplicates(t *testing.T) {
	amounts := []money.Amount{
		money.New(10_000),
		money.New(1_000),
		money.New(5_000),
		money.New(-1),
		money.Zero,
	}

	offers := Schedule(amounts, 500)

	require.Len(t, offers, 2)
	assert.True(t, offers[0].Principal.Equal(money.New(1_000)))
	assert.Equal(t, int64(3300), offers[0].AprBps)
	assert.Equal(t, 3, offers[0].TermDays)
	assert.True(t, offers[1].Principal.Equal(money.New(5_000)))
	assert.Equal(t, int64(4500), offers[1].AprBps)
	assert.Equal(t, 7, offers[1].TermDays)
}

func TestSchedule_AtMostFiveOffers(t *testing.T) {
	var amounts []money.Amount
	for i := int64(1); i <= 10; i++ {
		amounts = append(amounts, money.New(i*1_000))
	}

	offers := Schedule(amounts, 700)
	assert.Len(t, offers, MaxOffers)
}

func TestSchedule_Deterministic(t *testing.T) {
	amounts := []money.Amount{money.New(20_000), money.New(3_000)}

	assert.Equal(t, Schedule(amounts, 650), Schedule(amounts, 650))
}

func TestSchedule_HigherPrincipalNeverCheaper(t *testing.T) {
	offers := Schedule(nil, 700)

	for i := 1; i < len(offers); i++ {
		assert.GreaterOrEqual(t, offers[i].AprBps, offers[i-1].AprBps)
		assert.GreaterOrEqual(t, offers[i].TermDays, offers[i-1].TermDays)
	}
}
