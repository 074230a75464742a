package config

import (
	"reflect"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "USD_TO_LBP_EXCHANGE_RATE", "LBP_ROUNDING_FACTOR", "TIMEZONE",
		"ALLOWED_ORIGINS", "AMQP_URL", "AMQP_EXCHANGE", "MIGRATE_ON_START",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != "8081" {
		t.Errorf("Port: got %q, want 8081", cfg.Port)
	}
	if cfg.ExchangeRate != "90000" {
		t.Errorf("ExchangeRate: got %q, want 90000", cfg.ExchangeRate)
	}
	if cfg.RoundingFactor != 5000 {
		t.Errorf("RoundingFactor: got %d, want 5000", cfg.RoundingFactor)
	}
	if cfg.Timezone != "Asia/Beirut" {
		t.Errorf("Timezone: got %q, want Asia/Beirut", cfg.Timezone)
	}
	if cfg.AMQPURL != "" {
		t.Errorf("AMQPURL: got %q, want empty", cfg.AMQPURL)
	}
	if cfg.AMQPExchange != "cafe_events" {
		t.Errorf("AMQPExchange: got %q, want cafe_events", cfg.AMQPExchange)
	}
	if cfg.MigrateOnStart {
		t.Error("MigrateOnStart: got true, want false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LBP_ROUNDING_FACTOR", "1000")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,,")
	t.Setenv("MIGRATE_ON_START", "true")

	cfg := Load()
	if cfg.RoundingFactor != 1000 {
		t.Errorf("RoundingFactor: got %d, want 1000", cfg.RoundingFactor)
	}
	want := []string{"http://a.test", "http://b.test"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins: got %v, want %v", cfg.AllowedOrigins, want)
	}
	if !cfg.MigrateOnStart {
		t.Error("MigrateOnStart: got false, want true")
	}
}

func TestLoad_BadIntegerFallsBack(t *testing.T) {
	t.Setenv("LBP_ROUNDING_FACTOR", "lots")

	cfg := Load()
	if cfg.RoundingFactor != 5000 {
		t.Errorf("RoundingFactor: got %d, want 5000", cfg.RoundingFactor)
	}
}
