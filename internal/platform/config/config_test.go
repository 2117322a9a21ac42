package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekday(t *testing.T) {
	day, err := ParseWeekday("Sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, day)

	day, err = ParseWeekday(" mon ")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, day)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEEK_START_DAY", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("REQUIRE_EMPLOYEE_APPROVAL", "")

	cfg := Load()
	assert.Equal(t, time.Monday, cfg.WeekStartDay)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.True(t, cfg.RequireEmployeeApproval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEEK_START_DAY", "sunday")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("EXPORT_TIMEOUT", "30s")
	t.Setenv("SEED_FILE", "testdata/employees.json")

	cfg := Load()
	assert.Equal(t, time.Sunday, cfg.WeekStartDay)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.ExportTimeout)
	assert.Equal(t, "testdata/employees.json", cfg.SeedFile)
}

func TestLoadExportRateLimit(t *testing.T) {
	t.Setenv("EXPORT_RATE_LIMIT", "")
	t.Setenv("EXPORT_RATE_WINDOW", "")
	cfg := Load()
	assert.Equal(t, 30, cfg.ExportRateLimit)
	assert.Equal(t, time.Minute, cfg.ExportRateWindow)

	t.Setenv("EXPORT_RATE_LIMIT", "5")
	t.Setenv("EXPORT_RATE_WINDOW", "10s")
	cfg = Load()
	assert.Equal(t, 5, cfg.ExportRateLimit)
	assert.Equal(t, 10*time.Second, cfg.ExportRateWindow)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TIMEZONE", "UTC")
	cfg := Load()
	require.NoError(t, cfg.Validate())

	cfg.StoreDriver = StoreDriverPostgres
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg.StoreDriver = StoreDriverMemory
	cfg.Environment = "production"
	cfg.JWTSecret = "secret"
	assert.Error(t, cfg.Validate())

	cfg.Environment = "development"
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg.Timezone = "UTC"
	cfg.ExportRateLimit = 10
	cfg.ExportRateWindow = 0
	assert.Error(t, cfg.Validate())
}
