package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ACADEMY_ID", " academy-1 ")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("MIDTRANS_PRODUCTION", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "academy-1", cfg.AcademyID)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.True(t, cfg.MidtransProduction)
	assert.Equal(t, "IDR", cfg.PaymentCurrency)
	assert.Equal(t, 30, cfg.CartIdleMinutes)
}

func TestVerifyAcademySetup(t *testing.T) {
	assert.ErrorIs(t, VerifyAcademySetup(&Config{}), ErrAcademyNotConfigured)
	assert.ErrorIs(t, VerifyAcademySetup(nil), ErrAcademyNotConfigured)
	assert.NoError(t, VerifyAcademySetup(&Config{AcademyID: "academy-1"}))
}
