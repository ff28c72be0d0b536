package kafka

import (
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"INVALIDATION_ENABLED", "INVALIDATION_DRIVER", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID", "KAFKA_SASL_USER", "KAFKA_TLS"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Enabled || cfg.Driver != DriverNone {
		t.Fatalf("enabled=%v driver=%q", cfg.Enabled, cfg.Driver)
	}
	if cfg.Topic != "elevation-index" || cfg.GroupID != "elevation-cache" {
		t.Fatalf("topic=%q group=%q", cfg.Topic, cfg.GroupID)
	}
	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != "localhost:9092" {
		t.Fatalf("brokers=%v", cfg.Brokers)
	}
}

func TestFromEnv_BrokerListAndSASL(t *testing.T) {
	t.Setenv("INVALIDATION_ENABLED", "TRUE")
	t.Setenv("INVALIDATION_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("KAFKA_SASL_USER", "svc")
	t.Setenv("KAFKA_SASL_PASSWORD", "pw")
	t.Setenv("KAFKA_SASL_MECHANISM", "")

	cfg := FromEnv()
	if !cfg.Enabled || cfg.Driver != DriverKafka {
		t.Fatalf("enabled=%v driver=%q", cfg.Enabled, cfg.Driver)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" {
		t.Fatalf("brokers=%v", cfg.Brokers)
	}
	sc, err := cfg.sarama()
	if err != nil {
		t.Fatal(err)
	}
	if !sc.Net.SASL.Enable || sc.Net.SASL.User != "svc" {
		t.Fatalf("sasl not applied: %+v", sc.Net.SASL)
	}
}

func TestSaramaConfig_RejectsUnknownMechanism(t *testing.T) {
	cfg := InvalidationConfig{SASL: SASLConfig{Enable: true, Mechanism: "GSSAPI"}}
	if _, err := cfg.sarama(); err == nil {
		t.Fatal("expected error")
	}
}

func TestSaramaConfig_MissingCAFile(t *testing.T) {
	cfg := InvalidationConfig{TLS: TLSConfig{Enable: true, CaFile: "/nonexistent/ca.pem"}}
	if _, err := cfg.sarama(); err == nil {
		t.Fatal("expected error")
	}
}
