// Command benchmark drives load against a locally built gateway that proxies
// to an in-process fake upstream.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	upstreamPort = 9091
	gatewayPort  = 8081
	benchKey     = "bench-key-12345"
	benchConfig  = "bench_config.yaml"
	benchDB      = "bench.db"
)

type options struct {
	duration time.Duration
	rate     int
	target   string
	stream   bool
	chaos    bool
}

func main() {
	var opts options
	flag.DurationVar(&opts.duration, "duration", 10*time.Second, "attack duration")
	flag.IntVar(&opts.rate, "rate", 50, "requests per second")
	flag.StringVar(&opts.target, "target", "chat", "one of: chat, itinerary, models, validate")
	flag.BoolVar(&opts.stream, "stream", false, "stream chat completions")
	flag.BoolVar(&opts.chaos, "chaos", false, "abort streaming requests at random points")
	flag.Parse()

	targeter, err := newTargeter(opts.target, opts.stream)
	if err != nil {
		log.Fatal(err)
	}

	go serveUpstream(upstreamPort)

	gateway, cleanup, err := startGateway()
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	done := make(chan struct{})
	go monitorResources(gateway.Process.Pid, done)
	if opts.chaos {
		go disconnectRandomly(gatewayURL("/v1/chat/completions"), chaosWorkers(opts.rate), done)
	}

	fmt.Printf("attacking %s (stream=%t) for %s at %d req/s\n", opts.target, opts.stream, opts.duration, opts.rate)

	var (
		metrics vegeta.Metrics
		tally   itineraryTally
	)
	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: opts.rate, Per: time.Second}, opts.duration, opts.target) {
		metrics.Add(res)
		tally.add(res)
	}
	metrics.Close()
	close(done)

	report(os.Stdout, &metrics, tally)
}

func gatewayURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", gatewayPort, path)
}

// startGateway builds cmd/server, writes a config pointing at the fake
// upstream and waits for /health.
func startGateway() (*exec.Cmd, func(), error) {
	build := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	build.Stdout, build.Stderr = os.Stdout, os.Stderr
	if err := build.Run(); err != nil {
		return nil, nil, fmt.Errorf("build gateway: %w", err)
	}

	if err := os.WriteFile(benchConfig, []byte(gatewayConfig()), 0o644); err != nil {
		return nil, nil, fmt.Errorf("write config: %w", err)
	}

	logFile, err := os.Create("bench_server.log")
	if err != nil {
		return nil, nil, err
	}

	cmd := exec.Command("./bin/server")
	cmd.Env = append(os.Environ(),
		"CONFIG_FILE="+benchConfig,
		"SERVER_PORT="+strconv.Itoa(gatewayPort),
		"LOG_LEVEL=error",
	)
	cmd.Stdout, cmd.Stderr = logFile, logFile

	cleanup := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = logFile.Close()
		_ = os.Remove(benchConfig)
		_ = os.Remove(benchDB)
	}

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("start gateway: %w", err)
	}
	if err := waitHealthy(gatewayURL("/health"), 10*time.Second); err != nil {
		cleanup()
		return nil, nil, err
	}
	return cmd, cleanup, nil
}

func waitHealthy(url string, within time.Duration) error {
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("gateway not healthy after %s", within)
}

func gatewayConfig() string {
	return fmt.Sprintf(`
server:
  port: "%d"
  env: development
  api_keys: [%q]
rate_limit:
  requests_per_second: 100000
  burst: 100000
log:
  level: error
database:
  path: %q
llm:
  type: openrouter
  base_url: "http://localhost:%d/api/v1"
  api_key: mock-key
catalog:
  cache_ttl: 1m
`, gatewayPort, benchKey, benchDB, upstreamPort)
}
