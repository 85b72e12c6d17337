package config

import "testing"

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "production", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "boomcard", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "boomcard", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_FraudDefaults(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "boomcard"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Fraud.AutoApproveThreshold != 30 || c.Fraud.AutoRejectThreshold != 60 {
		t.Fatalf("expected default thresholds 30/60, got %d/%d", c.Fraud.AutoApproveThreshold, c.Fraud.AutoRejectThreshold)
	}
	if c.Fraud.MaxSubmissionsPerDay != 10 || c.Fraud.MaxSubmissionsPerMonth != 100 {
		t.Fatalf("unexpected submission caps: %d/%d", c.Fraud.MaxSubmissionsPerDay, c.Fraud.MaxSubmissionsPerMonth)
	}
}

func TestValidate_RejectsInvertedFraudThresholds(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "boomcard"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Fraud: FraudConfig{AutoApproveThreshold: 70, AutoRejectThreshold: 60},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for inverted thresholds")
	}
}

func TestValidate_KafkaTopicRequiredWithBrokers(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "boomcard"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Kafka: KafkaConfig{Brokers: []string{"localhost:9092"}},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for brokers without topic")
	}
}
