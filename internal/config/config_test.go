package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CURRENCY", "")

	cfg := FromEnv()
	assert.Equal(t, 20*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "INR", cfg.Currency)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "45")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("SHIPPING_FEE", "12.5")
	t.Setenv("REDIS_DB", "3")

	cfg := FromEnv()
	assert.Equal(t, 45*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 12.5, cfg.ShippingFee)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "")
	assert.Empty(t, FromEnv().CORSOrigins, "set but empty allows every origin")

	t.Setenv("CORS_ORIGINS", "https://shop.example.com, https://admin.example.com")
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, FromEnv().CORSOrigins)

	os.Unsetenv("CORS_ORIGINS")
	assert.Equal(t, []string{"http://localhost:5173"}, FromEnv().CORSOrigins)
}

func TestInvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("REFRESH_TOKEN_TTL", "-2")
	assert.Equal(t, 7*24*time.Hour, FromEnv().RefreshTokenTTL)
}

func TestValidateRequiresSecrets(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	require.NoError(t, Config{MongoURI: "mongodb://localhost", JWTSecret: "s"}.Validate())
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_NAME=shop_test\n"), 0o644))
	t.Setenv("DB_NAME", "")
	os.Unsetenv("DB_NAME")

	Load(path)
	assert.Equal(t, "shop_test", AppEnv.DBName)
}
