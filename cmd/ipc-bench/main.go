/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/crrow/polyipc-go/pkg/ipc"
	"github.com/crrow/polyipc-go/pkg/ipcproto"
	"github.com/crrow/polyipc-go/pkg/xev"
)

const (
	reportDir  = "benchmarks/reports"
	latestJSON = "benchmarks/reports/latest.json"
	latestMD   = "benchmarks/reports/latest.md"
)

type operation struct {
	payload string
	weight  int
}

type scenario struct {
	name        string
	description string
	perConn     int
	mix         []operation
}

type scenarioResult struct {
	Scenario    string  `json:"scenario"`
	Description string  `json:"description"`
	Connections int     `json:"connections"`
	Messages    int     `json:"messages"`
	Concurrency int     `json:"concurrency"`
	Bytes       uint64  `json:"bytes"`
	DurationMs  float64 `json:"duration_ms"`
	Throughput  float64 `json:"throughput_mps"`
	P50Ms       float64 `json:"p50_ms"`
	P95Ms       float64 `json:"p95_ms"`
	P99Ms       float64 `json:"p99_ms"`
	Errors      int     `json:"errors"`
	Received    int64   `json:"received"`
}

type benchmarkReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Connections int              `json:"connections"`
	Concurrency int              `json:"concurrency"`
	Scenarios   []scenarioResult `json:"scenarios"`
	Command     string           `json:"command"`
}

var scenarios = []scenario{
	{name: "cmd_only", description: "1 cmd message per connection", perConn: 1,
		mix: []operation{{payload: "cmd:toggle", weight: 100}}},
	{name: "mixed", description: "60% action + 30% cmd + 10% hook, 1 message per connection", perConn: 1,
		mix: []operation{{payload: "action:#date.toggle", weight: 60}, {payload: "cmd:show", weight: 30}, {payload: "hook:module/demo1", weight: 10}}},
	{name: "burst", description: "16 action messages per connection", perConn: 16,
		mix: []operation{{payload: "action:#menu.open.1", weight: 100}}},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		if err := runBench(os.Args[2:]); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "bench-run error: %v\n", err)
			os.Exit(1)
		}
	case "report":
		if err := runReport(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "bench-report error: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	_, _ = fmt.Fprintln(os.Stderr, "usage:")
	_, _ = fmt.Fprintln(os.Stderr, "  ipc-bench run --connections 2000 --concurrency 16")
	_, _ = fmt.Fprintln(os.Stderr, "  ipc-bench report")
}

func runBench(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	connections := fs.Int("connections", 2000, "connections per scenario")
	concurrency := fs.Int("concurrency", 16, "number of concurrent workers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *connections <= 0 || *concurrency <= 0 {
		return errors.New("connections and concurrency must be > 0")
	}

	dir, err := os.MkdirTemp("", "ipc-bench-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	target, err := startTarget(filepath.Join(dir, "ipc.sock"))
	if err != nil {
		return fmt.Errorf("start ipc server failed: %w", err)
	}
	defer target.stop()

	report := benchmarkReport{
		GeneratedAt: time.Now().UTC(),
		Connections: *connections,
		Concurrency: *concurrency,
		Command:     strings.Join(os.Args, " "),
	}
	for _, sc := range scenarios {
		before := target.received.Load()
		res, err := runScenario(target.path, sc, *connections, *concurrency)
		if err != nil {
			return err
		}
		res.Received = waitReceived(&target.received, before+int64(res.Messages), 2*time.Second) - before
		report.Scenarios = append(report.Scenarios, res)
	}

	if err := writeReport(report); err != nil {
		return err
	}
	printResults(os.Stdout, report)
	return nil
}

func runReport() error {
	data, err := os.ReadFile(latestJSON)
	if err != nil {
		return fmt.Errorf("read latest json report failed: %w", err)
	}

	var report benchmarkReport
	if err = json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("decode latest json report failed: %w", err)
	}

	md := renderMarkdown(report)
	if err = os.WriteFile(latestMD, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write markdown report failed: %w", err)
	}

	ts := report.GeneratedAt.Format("20060102-150405")
	versioned := filepath.Join(reportDir, fmt.Sprintf("report-%s.md", ts))
	if err = os.WriteFile(versioned, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write versioned markdown report failed: %w", err)
	}

	_, _ = fmt.Printf("wrote markdown report: %s\n", latestMD)
	return nil
}

// target is an ipc.Server running on its own loop goroutine.
type target struct {
	path     string
	received atomic.Int64
	stopper  *xev.Async
	done     chan error
}

func startTarget(path string) (*target, error) {
	loop, err := xev.NewLoop()
	if err != nil {
		return nil, err
	}
	t := &target{path: path, done: make(chan error, 1)}
	srv, err := ipc.Listen(loop, path, ipc.WithHandler(ipc.HandlerFunc(func([]byte) {
		t.received.Add(1)
	})))
	if err != nil {
		_ = loop.Close()
		return nil, err
	}
	t.stopper, err = xev.NewAsync(loop, xev.AsyncFunc(func(a *xev.Async) {
		srv.Close(nil)
		a.Close(nil)
	}))
	if err != nil {
		srv.Close(nil)
		_ = loop.Close()
		return nil, err
	}
	go func() {
		err := loop.Run()
		if cerr := loop.Close(); err == nil {
			err = cerr
		}
		t.done <- err
	}()
	return t, nil
}

func (t *target) stop() {
	if err := t.stopper.Send(); err == nil {
		<-t.done
	}
}

func waitReceived(counter *atomic.Int64, want int64, timeout time.Duration) int64 {
	deadline := time.Now().Add(timeout)
	for {
		got := counter.Load()
		if got >= want || time.Now().After(deadline) {
			return got
		}
		time.Sleep(time.Millisecond)
	}
}

func runScenario(path string, sc scenario, connections, concurrency int) (scenarioResult, error) {
	jobs := make(chan int, connections)
	for i := 0; i < connections; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	type workerOut struct {
		latencies []float64
		errors    int
		bytes     uint64
	}
	outs := make(chan workerOut, concurrency)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(int64(workerID + 99)))
			out := workerOut{latencies: make([]float64, 0, connections/concurrency+8)}
			for range jobs {
				wire, err := buildWire(rng, sc)
				if err != nil {
					out.errors++
					continue
				}
				t0 := time.Now()
				if err := sendOnce(path, wire); err != nil {
					out.errors++
				}
				out.latencies = append(out.latencies, time.Since(t0).Seconds()*1000.0)
				out.bytes += uint64(len(wire))
			}
			outs <- out
		}(w)
	}

	wg.Wait()
	close(outs)

	allLat := make([]float64, 0, connections)
	res := scenarioResult{
		Scenario:    sc.name,
		Description: sc.description,
		Connections: connections,
		Messages:    connections * sc.perConn,
		Concurrency: concurrency,
	}
	for out := range outs {
		allLat = append(allLat, out.latencies...)
		res.Errors += out.errors
		res.Bytes += out.bytes
	}

	dur := time.Since(start)
	sort.Float64s(allLat)
	res.DurationMs = dur.Seconds() * 1000.0
	res.Throughput = float64(res.Messages) / dur.Seconds()
	res.P50Ms = percentile(allLat, 50)
	res.P95Ms = percentile(allLat, 95)
	res.P99Ms = percentile(allLat, 99)
	return res, nil
}

func buildWire(rng *rand.Rand, sc scenario) ([]byte, error) {
	var wire []byte
	for i := 0; i < sc.perConn; i++ {
		var err error
		wire, err = ipcproto.AppendEncode(wire, []byte(pickOperation(rng, sc.mix)))
		if err != nil {
			return nil, err
		}
	}
	return wire, nil
}

func pickOperation(rng *rand.Rand, ops []operation) string {
	total := 0
	for _, op := range ops {
		total += op.weight
	}
	if total <= 0 {
		return "cmd:toggle"
	}
	pick := rng.Intn(total)
	acc := 0
	for _, op := range ops {
		acc += op.weight
		if pick < acc {
			return op.payload
		}
	}
	return ops[len(ops)-1].payload
}

// sendOnce writes wire on a fresh connection, half-closes it and waits for
// the server to hang up.
func sendOnce(path string, wire []byte) error {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err = conn.Write(wire); err != nil {
		return err
	}
	if err = conn.(*net.UnixConn).CloseWrite(); err != nil {
		return err
	}
	if _, err = io.Copy(io.Discard, conn); err != nil {
		return err
	}
	return nil
}

func writeReport(report benchmarkReport) error {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return fmt.Errorf("create reports dir failed: %w", err)
	}

	blob, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report failed: %w", err)
	}
	if err = os.WriteFile(latestJSON, blob, 0o644); err != nil {
		return fmt.Errorf("write latest report failed: %w", err)
	}
	ts := report.GeneratedAt.Format("20060102-150405")
	versioned := filepath.Join(reportDir, fmt.Sprintf("benchmark-%s.json", ts))
	if err = os.WriteFile(versioned, blob, 0o644); err != nil {
		return fmt.Errorf("write versioned report failed: %w", err)
	}
	_, _ = fmt.Printf("wrote benchmark report: %s\n", latestJSON)
	return nil
}

func printResults(w io.Writer, report benchmarkReport) {
	_, _ = fmt.Fprint(w, resultsTable(report))
}

func resultsTable(report benchmarkReport) string {
	var b strings.Builder
	b.WriteString("scenario | messages | sent | msg/s | p50 ms | p95 ms | p99 ms | errors | received\n")
	b.WriteString("---|---:|---:|---:|---:|---:|---:|---:|---:\n")
	for _, s := range report.Scenarios {
		_, _ = fmt.Fprintf(&b, "%s | %s | %s | %.1f | %.3f | %.3f | %.3f | %d | %s\n",
			s.Scenario,
			humanize.Comma(int64(s.Messages)),
			humanize.IBytes(s.Bytes),
			s.Throughput,
			s.P50Ms,
			s.P95Ms,
			s.P99Ms,
			s.Errors,
			humanize.Comma(s.Received),
		)
	}
	return b.String()
}

func renderMarkdown(report benchmarkReport) string {
	var b strings.Builder
	b.WriteString("# IPC Server Benchmark Report\n\n")
	_, _ = fmt.Fprintf(&b, "Generated at: %s UTC\n\n", report.GeneratedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&b, "Connections per scenario: %s\n\n", humanize.Comma(int64(report.Connections)))
	_, _ = fmt.Fprintf(&b, "Concurrency: %d\n\n", report.Concurrency)

	b.WriteString("## Scenarios\n\n")
	for _, s := range report.Scenarios {
		_, _ = fmt.Fprintf(&b, "- %s: %s\n", s.Scenario, s.Description)
	}
	b.WriteString("\n## Results\n\n")
	b.WriteString(resultsTable(report))
	return b.String()
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int((p / 100.0) * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
