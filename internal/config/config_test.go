package config

import (
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"JWT_SECRET": "s", "DATABASE_URL": "postgres://x"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" || cfg.AllowedOrigins != "*" || cfg.RateLimitPerMinute != 100 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ExpireInterval != 30*time.Second || cfg.ExpireGrace != 15*time.Second {
		t.Fatalf("unexpected expiry defaults %v %v", cfg.ExpireInterval, cfg.ExpireGrace)
	}
	if cfg.AutoVerifyListeners {
		t.Fatal("auto verify must default to false")
	}
}

func TestFromEnvRequired(t *testing.T) {
	if _, err := FromEnv(env(map[string]string{"DATABASE_URL": "x"})); err == nil {
		t.Fatal("missing JWT_SECRET should fail")
	}
	if _, err := FromEnv(env(map[string]string{"JWT_SECRET": "x"})); err == nil {
		t.Fatal("missing DATABASE_URL should fail")
	}
}

func TestFromEnvInvalid(t *testing.T) {
	base := map[string]string{"JWT_SECRET": "s", "DATABASE_URL": "d"}
	cases := map[string]string{
		"RATE_LIMIT_PER_MINUTE":   "0",
		"EXPIRE_INTERVAL_SECONDS": "soon",
		"EXPIRE_GRACE_SECONDS":    "-1",
		"AUTO_VERIFY_LISTENERS":   "maybe",
	}
	for k, v := range cases {
		m := map[string]string{}
		for bk, bv := range base {
			m[bk] = bv
		}
		m[k] = v
		if _, err := FromEnv(env(m)); err == nil {
			t.Errorf("%s=%q should fail", k, v)
		}
	}
}
