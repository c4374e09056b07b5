package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RESERVATION_WINDOW", "")
	t.Setenv("REDIS_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Reservation.Window)
	assert.Equal(t, 3*time.Hour, cfg.Reservation.SweepCutoff)
	assert.Equal(t, 5*time.Minute, cfg.Reservation.ReleaseGrace)
	assert.True(t, cfg.Reservation.AutoRelease)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RESERVATION_WINDOW", "45m")
	t.Setenv("RESERVATION_AUTO_RELEASE", "false")
	t.Setenv("AUTH_ADMIN_EXTERNAL_IDS", "abc, def ,")
	t.Setenv("REDIS_HOST", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.Reservation.Window)
	assert.False(t, cfg.Reservation.AutoRelease)
	assert.Equal(t, []string{"abc", "def"}, cfg.Auth.AdminExternalIDs)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseDuration_Fallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("nope", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}

func TestReservationConfig_Location(t *testing.T) {
	c := ReservationConfig{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, c.Location())

	c.Timezone = "UTC"
	assert.Equal(t, "UTC", c.Location().String())
}
