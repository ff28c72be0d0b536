// Package metrics exposes Prometheus metrics for the service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

// ServiceInfo describes how this instance resolves lookups.
type ServiceInfo struct {
	StoreDriver string
	CRSBackend  string
	CellRes     int
}

type Config struct {
	Enabled bool
	Addr    string
	Path    string
	Build   BuildInfo
	Service ServiceInfo
}

// Provider owns a private registry for process-level metadata and serves it
// together with the default registry, where the service collectors live.
type Provider struct {
	reg *prometheus.Registry
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_details",
			Help: "Build details for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	service := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elevation_service_info",
			Help: "Lookup backends of this instance (value is always 1).",
		},
		[]string{"store_driver", "crs_backend", "cell_res"},
	)
	reg.MustRegister(build, service)

	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	build.WithLabelValues(v.Version, v.Revision, v.Branch, v.BuildDate).Set(1)
	s := cfg.Service
	service.WithLabelValues(s.StoreDriver, s.CRSBackend, strconv.Itoa(s.CellRes)).Set(1)

	return &Provider{reg: reg}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers{p.reg, prometheus.DefaultGatherer}, promhttp.HandlerOpts{})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

// Registerer is handed to components that own their collectors, such as the
// invalidation runner.
func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
