package main

import (
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"

	v1 "github.com/nulzo/atlas-api/internal/server/v1"
)

// itineraryTally counts the gateway's JSON-mode itinerary verdicts.
type itineraryTally struct {
	valid, invalid int
}

func (t *itineraryTally) add(res *vegeta.Result) {
	switch res.Headers.Get(v1.HeaderItineraryValid) {
	case "true":
		t.valid++
	case "false":
		t.invalid++
	}
}

func report(w io.Writer, m *vegeta.Metrics, tally itineraryTally) {
	line := strings.Repeat("-", 50)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%-12s %s\n", "p50", m.Latencies.P50)
	fmt.Fprintf(w, "%-12s %s\n", "p99", m.Latencies.P99)
	fmt.Fprintf(w, "%-12s %s\n", "mean", m.Latencies.Mean)
	fmt.Fprintf(w, "%-12s %s\n", "max", m.Latencies.Max)
	fmt.Fprintf(w, "%-12s %.2f%%\n", "success", m.Success*100)
	fmt.Fprintf(w, "%-12s %.2f req/s\n", "throughput", m.Throughput)

	codes := make([]string, 0, len(m.StatusCodes))
	for code := range m.StatusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "%-12s %d\n", "status "+code, m.StatusCodes[code])
	}

	if tally.valid+tally.invalid > 0 {
		fmt.Fprintf(w, "%-12s %d valid, %d invalid\n", "itineraries", tally.valid, tally.invalid)
	}
	fmt.Fprintln(w, line)

	seen := make(map[string]bool)
	for _, msg := range m.Errors {
		if len(seen) == 5 {
			break
		}
		if !seen[msg] {
			seen[msg] = true
			fmt.Fprintln(w, "error:", msg)
		}
	}
}

// monitorResources samples the gateway's RSS and CPU once a second via ps.
func monitorResources(pid int, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Printf("%-10s %-10s %-10s\n", "time", "rss(MB)", "cpu(%)")
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "rss=,%cpu=").Output()
			if err != nil {
				continue
			}
			fields := strings.Fields(string(out))
			if len(fields) < 2 {
				continue
			}
			rss, _ := strconv.ParseFloat(fields[0], 64)
			cpu, _ := strconv.ParseFloat(fields[1], 64)
			fmt.Printf("%-10s %-10.2f %-10.2f\n", now.Format("15:04:05"), rss/1024, cpu)
		}
	}
}
