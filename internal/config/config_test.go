package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "expert-pancake" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "expert-pancake")
	}
	if cfg.JWTAudience != "expert-pancake-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "expert-pancake-api")
	}
	if cfg.SessionTokenTTL != "720h" {
		t.Errorf("SessionTokenTTL = %q, want %q", cfg.SessionTokenTTL, "720h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.ExpiryWebDays != 7 {
		t.Errorf("ExpiryWebDays = %d, want 7", cfg.ExpiryWebDays)
	}
	if cfg.ExpiryMobileDays != 90 {
		t.Errorf("ExpiryMobileDays = %d, want 90", cfg.ExpiryMobileDays)
	}
	if cfg.ExpiryDesktopDays != 30 {
		t.Errorf("ExpiryDesktopDays = %d, want 30", cfg.ExpiryDesktopDays)
	}
	if cfg.ExpiryDefaultDays != 30 {
		t.Errorf("ExpiryDefaultDays = %d, want 30", cfg.ExpiryDefaultDays)
	}
	if cfg.GeoDistanceThresholdKm != 500.0 {
		t.Errorf("GeoDistanceThresholdKm = %v, want 500", cfg.GeoDistanceThresholdKm)
	}
	if cfg.VerificationMaxAttempts != 5 {
		t.Errorf("VerificationMaxAttempts = %d, want 5", cfg.VerificationMaxAttempts)
	}
	if cfg.NotifyKafkaTopic != "session-events" {
		t.Errorf("NotifyKafkaTopic = %q, want %q", cfg.NotifyKafkaTopic, "session-events")
	}
	if cfg.CodeReturnToClient {
		t.Error("CodeReturnToClient should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("EXPIRY_WEB_DAYS", "14")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.ExpiryWebDays != 14 {
		t.Errorf("ExpiryWebDays = %d, want 14", cfg.ExpiryWebDays)
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("HTTP_ADDR", ":8080")
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_CodeReturnToClientProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("CODE_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when CODE_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestLoad_CodeReturnToClientDevelopment(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("CODE_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.CodeReturnToClient {
		t.Error("CodeReturnToClient should be true")
	}
}

func TestLoad_ExpiryMustBePositive(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("EXPIRY_WEB_DAYS", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject negative expiry thresholds")
	}
}

func TestLoad_GeoThresholdMustNotBeNegative(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("GEO_DISTANCE_THRESHOLD_KM", "-10")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject negative geo threshold")
	}
}

func TestTokenTTL_ValidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("SESSION_TOKEN_TTL", "48h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.TokenTTL(); ttl != 48*time.Hour {
		t.Errorf("TokenTTL = %v, want %v", ttl, 48*time.Hour)
	}
}

func TestTokenTTL_InvalidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("SESSION_TOKEN_TTL", "invalid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.TokenTTL(); ttl != 720*time.Hour {
		t.Errorf("TokenTTL = %v, want %v (default)", ttl, 720*time.Hour)
	}
}

func TestSweepEvery_Fallback(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"valid", "5m", 5 * time.Minute},
		{"invalid", "often", 2 * time.Minute},
		{"zero", "0", 2 * time.Minute},
		{"negative", "-1m", 2 * time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("HTTP_ADDR", ":8080")
			os.Setenv("SWEEP_INTERVAL", tc.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := cfg.SweepEvery(); got != tc.want {
				t.Errorf("SweepEvery = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLockTimeout_Fallback(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("USER_LOCK_TIMEOUT", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LockTimeout(); got != 250*time.Millisecond {
		t.Errorf("LockTimeout = %v, want %v", got, 250*time.Millisecond)
	}

	os.Setenv("USER_LOCK_TIMEOUT", "nope")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LockTimeout(); got != 5*time.Second {
		t.Errorf("LockTimeout = %v, want %v (default)", got, 5*time.Second)
	}
}

func TestExpiryDurations(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.ExpiryWeb(); got != 7*24*time.Hour {
		t.Errorf("ExpiryWeb = %v, want %v", got, 7*24*time.Hour)
	}
	if got := cfg.ExpiryMobile(); got != 90*24*time.Hour {
		t.Errorf("ExpiryMobile = %v, want %v", got, 90*24*time.Hour)
	}
	if got := cfg.ExpiryDesktop(); got != 30*24*time.Hour {
		t.Errorf("ExpiryDesktop = %v, want %v", got, 30*24*time.Hour)
	}
	if got := cfg.ExpiryDefault(); got != 30*24*time.Hour {
		t.Errorf("ExpiryDefault = %v, want %v", got, 30*24*time.Hour)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple with spaces", "a:9092, b:9092 ,c:9092", []string{"a:9092", "b:9092", "c:9092"}},
		{"trailing comma", "a:9092,", []string{"a:9092"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("HTTP_ADDR", ":8080")
			if tc.value != "" {
				os.Setenv("KAFKA_BROKERS", tc.value)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			got := cfg.KafkaBrokersList()
			if len(got) != len(tc.want) {
				t.Fatalf("KafkaBrokersList = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("KafkaBrokersList[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}
