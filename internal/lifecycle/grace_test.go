package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveGraceDays(t *testing.T) {
	zero, seven, negative := 0, 7, -3

	assert.Equal(t, 14, EffectiveGraceDays(nil))
	assert.Equal(t, 0, EffectiveGraceDays(&zero))
	assert.Equal(t, 7, EffectiveGraceDays(&seven))
	assert.Equal(t, 0, EffectiveGraceDays(&negative))
}

func TestIsGraceExpired(t *testing.T) {
	day0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.False(t, IsGraceExpired(nil, 14, day0.AddDate(1, 0, 0)), "nil failure never expires")
	assert.False(t, IsGraceExpired(&day0, 14, day0.AddDate(0, 0, 10)))
	assert.False(t, IsGraceExpired(&day0, 14, day0.AddDate(0, 0, 14)), "boundary instant is still in grace")
	assert.True(t, IsGraceExpired(&day0, 14, day0.AddDate(0, 0, 14).Add(time.Second)))
	assert.True(t, IsGraceExpired(&day0, 14, day0.AddDate(0, 0, 15)))
	assert.True(t, IsGraceExpired(&day0, 0, day0.Add(time.Minute)), "zero grace expires immediately")
}

func TestGracePeriodEnd(t *testing.T) {
	failed := time.Date(2026, 1, 25, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC), GracePeriodEnd(failed, 14))
}

func TestTrialDaysRemaining(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, TrialDaysRemaining(now.Add(72*time.Hour), now))
	assert.Equal(t, 3, TrialDaysRemaining(now.Add(49*time.Hour), now))
	assert.Equal(t, 1, TrialDaysRemaining(now.Add(time.Hour), now))
	assert.Equal(t, 0, TrialDaysRemaining(now.Add(-time.Hour), now))
}

func TestResolveGraceDays(t *testing.T) {
	zero, thirty := 0, 30

	assert.Equal(t, 21, ResolveGraceDays(nil, 21))
	assert.Equal(t, 0, ResolveGraceDays(nil, 0), "configured zero is honored")
	assert.Equal(t, 14, ResolveGraceDays(nil, -1))
	assert.Equal(t, 0, ResolveGraceDays(&zero, 21))
	assert.Equal(t, 30, ResolveGraceDays(&thirty, 21))
}
