package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Config struct {
	TargetURL      string
	Method         string
	Concurrency    int
	Duration       time.Duration
	BatchSize      int
	CenterLat      float64
	CenterLon      float64
	Res            int
	Rings          int
	ZipfS          float64
	ZipfV          float64
	OutputPrefix   string
	RequestTimeout time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:3000/api/v1/lookup", "Lookup API URL")
	flag.StringVar(&cfg.Method, "method", "get", "Request style: get|post")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Test duration")
	flag.IntVar(&cfg.BatchSize, "batch", 20, "Locations per request")
	flag.Float64Var(&cfg.CenterLat, "lat", 50.94, "Centre latitude")
	flag.Float64Var(&cfg.CenterLon, "lon", 6.96, "Centre longitude")
	flag.IntVar(&cfg.Res, "res", 9, "H3 resolution of query points")
	flag.IntVar(&cfg.Rings, "rings", 10, "H3 grid disk radius around the centre")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.2, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.StringVar(&cfg.OutputPrefix, "out", "", "Optional output prefix for samples CSV and summary JSON")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.Parse()
	cfg.Method = strings.ToLower(strings.TrimSpace(cfg.Method))
	return cfg
}

type sample struct {
	Timestamp    time.Time
	Latency      time.Duration
	Status       int
	ErrorMsg     string
	Locations    int
	ResultErrors int
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	Locations     int64     `json:"locations"`
	ResultErrors  int64     `json:"result_errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	BatchSize     int       `json:"batch"`
	Points        int       `json:"points"`
	Method        string    `json:"method"`
	TargetURL     string    `json:"target"`
}

func main() {
	cfg := loadConfig()
	if cfg.Method != "get" && cfg.Method != "post" {
		log.Fatalf("method must be get or post, got %q", cfg.Method)
	}
	if cfg.Concurrency <= 0 || cfg.BatchSize <= 0 {
		log.Fatalf("concurrency and batch must be positive")
	}
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		log.Fatalf("zipf needs s > 1 and v >= 1")
	}

	pts, err := gridPoints(cfg.CenterLat, cfg.CenterLon, cfg.Res, cfg.Rings)
	if err != nil {
		log.Fatalf("workload: %v", err)
	}
	log.Printf("workload: %d H3 points at res %d around %.5f,%.5f", len(pts), cfg.Res, cfg.CenterLat, cfg.CenterLon)

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          1024,
			MaxIdleConnsPerHost:   256,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var csvWriter *csv.Writer
	if cfg.OutputPrefix != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
			log.Fatalf("mkdir results: %v", err)
		}
		f, err := os.Create(filepath.Clean(cfg.OutputPrefix + "_samples.csv"))
		if err != nil {
			log.Fatalf("open csv: %v", err)
		}
		defer func() { _ = f.Close() }()
		csvWriter = csv.NewWriter(f)
	}

	samplesChan := make(chan sample, 4096)
	done := make(chan summary, 1)
	go func() {
		var s summary
		latencies := make([]float64, 0, 1<<16)
		if csvWriter != nil {
			_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "error", "locations", "result_errors"})
		}
		for smp := range samplesChan {
			s.TotalRequests++
			s.Locations += int64(smp.Locations)
			s.ResultErrors += int64(smp.ResultErrors)
			ms := float64(smp.Latency.Microseconds()) / 1000.0
			if smp.ErrorMsg == "" {
				s.SuccessCount++
				latencies = append(latencies, ms)
			} else {
				s.ErrorCount++
			}
			if csvWriter != nil {
				_ = csvWriter.Write([]string{
					smp.Timestamp.UTC().Format(time.RFC3339Nano),
					fmt.Sprintf("%.3f", ms),
					fmt.Sprintf("%d", smp.Status),
					smp.ErrorMsg,
					fmt.Sprintf("%d", smp.Locations),
					fmt.Sprintf("%d", smp.ResultErrors),
				})
			}
		}
		if csvWriter != nil {
			csvWriter.Flush()
		}
		sort.Float64s(latencies)
		s.P50Ms = percentile(latencies, 50)
		s.P95Ms = percentile(latencies, 95)
		s.P99Ms = percentile(latencies, 99)
		done <- s
	}()

	start := time.Now()
	log.Printf("loadgen start target=%s method=%s dur=%s conc=%d batch=%d", cfg.TargetURL, cfg.Method, cfg.Duration, cfg.Concurrency, cfg.BatchSize)

	seed := time.Now().UnixNano()
	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for workerID := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(id) + 1))
			z := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, uint64(len(pts)-1))
			for ctx.Err() == nil {
				smp := doRequest(ctx, httpClient, cfg, pickBatch(z, pts, cfg.BatchSize))
				select {
				case samplesChan <- smp:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	go func() {
		wg.Wait()
		close(samplesChan)
	}()

	s := <-done
	s.StartTime = start.UTC()
	s.EndTime = time.Now().UTC()
	s.DurationSec = s.EndTime.Sub(s.StartTime).Seconds()
	s.ThroughputRPS = float64(s.TotalRequests) / s.DurationSec
	s.Concurrency = cfg.Concurrency
	s.BatchSize = cfg.BatchSize
	s.Points = len(pts)
	s.Method = cfg.Method
	s.TargetURL = cfg.TargetURL

	if cfg.OutputPrefix != "" {
		if f, err := os.Create(filepath.Clean(cfg.OutputPrefix + "_summary.json")); err == nil {
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			_ = enc.Encode(s)
			_ = f.Close()
		}
	}
	log.Printf("done: total=%d succ=%d err=%d locations=%d result_errors=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		s.TotalRequests, s.SuccessCount, s.ErrorCount, s.Locations, s.ResultErrors, s.ThroughputRPS, s.P50Ms, s.P95Ms, s.P99Ms)
}

func doRequest(ctx context.Context, c *http.Client, cfg Config, batch []point) sample {
	smp := sample{Timestamp: time.Now(), Locations: len(batch)}

	var req *http.Request
	var err error
	if cfg.Method == "post" {
		var body []byte
		if body, err = postBody(batch); err == nil {
			req, err = http.NewRequestWithContext(ctx, http.MethodPost, cfg.TargetURL, bytes.NewReader(body))
			if req != nil {
				req.Header.Set("Content-Type", "application/json")
			}
		}
	} else {
		var u string
		if u, err = getURL(cfg.TargetURL, batch); err == nil {
			req, err = http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		}
	}
	if err != nil {
		smp.ErrorMsg = err.Error()
		return smp
	}

	resp, err := c.Do(req)
	smp.Latency = time.Since(smp.Timestamp)
	if err != nil {
		smp.ErrorMsg = err.Error()
		return smp
	}
	defer func() { _ = resp.Body.Close() }()
	smp.Status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		smp.ErrorMsg = err.Error()
		return smp
	}
	if resp.StatusCode != http.StatusOK {
		smp.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
		return smp
	}
	if smp.ResultErrors, err = countErrors(body); err != nil {
		smp.ErrorMsg = err.Error()
	}
	return smp
}
