// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostGIS = "postgis"
	StoreMemory  = "memory"

	CRSBackendGDAL  = "gdal"
	CRSBackendWGS84 = "wgs84"
)

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr      string
	LogLevel  string
	DataDir   string
	APIURL    string
	CacheSize int

	StoreDriver string
	DBHost      string
	DBDatabase  string
	DBUser      string
	DBPass      string
	DBDSN       string
	DBMaxConns  int
	DBTable     string

	CRSBackend   string
	AxisSwapEPSG string

	RedisAddr      string
	CacheTTL       time.Duration
	CacheOpTimeout time.Duration
	CellRes        int

	BatchWorkers int
	Metrics      MetricsCfg

	Regenerate bool
}

func FromEnv() Config {
	return Config{
		Addr:      getenv("ADDR", ":3000"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		DataDir:   getenv("DATADIR", ""),
		APIURL:    getenv("APIURL", "/api/v1/lookup"),
		CacheSize: getint("CACHESIZE", 10000),

		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", StorePostGIS)),
		DBHost:      getenv("DBHOST", ""),
		DBDatabase:  getenv("DBDATABASE", ""),
		DBUser:      getenv("DBUSER", ""),
		DBPass:      getenv("DBPASS", ""),
		DBDSN:       getenv("DB_DSN", ""),
		DBMaxConns:  getint("DB_MAX_CONNS", 16),
		DBTable:     getenv("DB_TABLE", "geo_data"),

		CRSBackend:   strings.ToLower(getenv("CRS_BACKEND", CRSBackendGDAL)),
		AxisSwapEPSG: os.Getenv("AXIS_SWAP_EPSG"),

		RedisAddr:      getenv("REDIS_ADDR", ""),
		CacheTTL:       getduration("CACHE_TTL", time.Hour),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		CellRes:        getint("CELL_RES", 7),

		BatchWorkers: getint("BATCH_WORKERS", 8),
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

// AxisSwapList returns the EPSG codes whose geographic axes come back swapped.
// ok is false when AXIS_SWAP_EPSG is unset, leaving the choice to the CRS
// backend; "none" is an explicit empty list.
func (c Config) AxisSwapList() (list string, ok bool) {
	v := strings.TrimSpace(c.AxisSwapEPSG)
	switch strings.ToLower(v) {
	case "":
		return "", false
	case "none":
		return "", true
	}
	return v, true
}

// PostgresDSN prefers DB_DSN and otherwise assembles one from the DB* variables.
func (c Config) PostgresDSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   c.DBHost,
		Path:   "/" + c.DBDatabase,
	}
	q := url.Values{}
	if c.DBUser != "" {
		if c.DBPass != "" {
			u.User = url.UserPassword(c.DBUser, c.DBPass)
		} else {
			u.User = url.User(c.DBUser)
		}
	}
	q.Set("sslmode", getenv("DB_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate reports every missing or invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("$DATADIR is not set"))
	}
	if !strings.HasPrefix(c.APIURL, "/") {
		errs = append(errs, fmt.Errorf("APIURL %q must start with /", c.APIURL))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, errors.New("invalid value for CACHESIZE"))
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostGIS:
		if c.DBDSN == "" {
			if c.DBHost == "" {
				errs = append(errs, errors.New("$DBHOST is not set"))
			}
			if c.DBDatabase == "" {
				errs = append(errs, errors.New("$DBDATABASE is not set"))
			}
			if c.DBUser == "" {
				errs = append(errs, errors.New("$DBUSER is not set"))
			}
		}
		if c.DBMaxConns <= 0 {
			errs = append(errs, errors.New("DB_MAX_CONNS must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.CRSBackend {
	case CRSBackendGDAL, CRSBackendWGS84:
	default:
		errs = append(errs, fmt.Errorf("unknown CRS_BACKEND %q", c.CRSBackend))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("METRICS_PATH %q must start with /", c.Metrics.Path))
	}
	if c.BatchWorkers <= 0 {
		errs = append(errs, errors.New("BATCH_WORKERS must be positive"))
	}
	if c.CellRes < 0 || c.CellRes > 15 {
		errs = append(errs, fmt.Errorf("CELL_RES %d must be 0..15", c.CellRes))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		// keep the bad value visible to Validate
		return -1
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
