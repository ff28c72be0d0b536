package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATADIR", "/data")
	t.Setenv("DBHOST", "db:5432")
	t.Setenv("DBDATABASE", "geo")
	t.Setenv("DBUSER", "geo")
	t.Setenv("AXIS_SWAP_EPSG", "")

	cfg := FromEnv()
	if cfg.Addr != ":3000" || cfg.APIURL != "/api/v1/lookup" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CacheSize != 10000 || cfg.DBTable != "geo_data" || cfg.CacheTTL != time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if list, ok := cfg.AxisSwapList(); ok || list != "" {
		t.Fatalf("AxisSwapList=%q,%v want unset", list, ok)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	for _, k := range []string{"DATADIR", "DBHOST", "DBDATABASE", "DBUSER", "DB_DSN"} {
		t.Setenv(k, "")
	}
	t.Setenv("CACHESIZE", "lots")
	t.Setenv("STORE_DRIVER", "postgis")

	err := FromEnv().Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"$DATADIR", "CACHESIZE", "$DBHOST", "$DBDATABASE", "$DBUSER"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_MemoryStoreNeedsNoDB(t *testing.T) {
	t.Setenv("DATADIR", "/data")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CRS_BACKEND", "wgs84")
	if err := FromEnv().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	t.Setenv("DB_SSLMODE", "")
	cfg := Config{DBHost: "db:5432", DBDatabase: "geo", DBUser: "u", DBPass: "p@ss"}
	got := cfg.PostgresDSN()
	want := "postgres://u:p%40ss@db:5432/geo?sslmode=disable"
	if got != want {
		t.Fatalf("dsn=%q want %q", got, want)
	}
	cfg.DBDSN = "postgres://override"
	if cfg.PostgresDSN() != "postgres://override" {
		t.Fatalf("DB_DSN must win")
	}
}

func TestAxisSwapList_None(t *testing.T) {
	if got, ok := (Config{AxisSwapEPSG: "none"}).AxisSwapList(); !ok || got != "" {
		t.Fatalf("none => %q,%v", got, ok)
	}
	if got, ok := (Config{AxisSwapEPSG: "25832,31467"}).AxisSwapList(); !ok || got != "25832,31467" {
		t.Fatalf("list => %q,%v", got, ok)
	}
}
