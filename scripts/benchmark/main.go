// Command benchmark measures fetch latency per escalation tier against a
// running webpeel instance. It fetches each test URL with the direct,
// rendered, and anti-detection tiers and reports per-tier averages.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"
)

var (
	apiURL = flag.String("api-url", "http://localhost:8080", "webpeel API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per URL and tier")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering different site types.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

// tiers are the fetch variants exercised per URL.
var tiers = []struct {
	Name    string
	Render  bool
	Stealth bool
}{
	{"direct", false, false},
	{"rendered", true, false},
	{"anti-detection", true, true},
}

type fetchRequest struct {
	URL     string `json:"url"`
	Render  bool   `json:"render,omitempty"`
	Stealth bool   `json:"stealth,omitempty"`
	Fresh   bool   `json:"fresh"`
	Timeout int    `json:"timeout,omitempty"`
}

type fetchResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Content    string `json:"content"`
		Method     string `json:"method"`
		StatusCode int    `json:"status_code"`
		ElapsedMs  int64  `json:"elapsed_ms"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type runResult struct {
	Run           int    `json:"run"`
	WallMs        int64  `json:"wall_ms"`
	ServerMs      int64  `json:"server_ms"`
	Method        string `json:"method"`
	StatusCode    int    `json:"status_code"`
	ContentLength int    `json:"content_length"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type tierResult struct {
	Tier      string      `json:"tier"`
	Runs      []runResult `json:"runs"`
	AvgWallMs float64     `json:"avg_wall_ms"`
	Successes int         `json:"successes"`
}

type urlResult struct {
	URL   string       `json:"url"`
	Label string       `json:"label"`
	Tiers []tierResult `json:"tiers"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	client := &http.Client{Timeout: 180 * time.Second}
	report := benchmarkReport{
		Timestamp:  time.Now().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for _, tu := range testURLs {
		ur := urlResult{URL: tu.URL, Label: tu.Label}

		for _, tier := range tiers {
			tr := tierResult{Tier: tier.Name}
			var wallSum int64

			for i := 0; i < *runs; i++ {
				rr := doFetch(client, tu.URL, tier.Render, tier.Stealth, i+1)
				tr.Runs = append(tr.Runs, rr)
				if rr.Success {
					tr.Successes++
					wallSum += rr.WallMs
				}
			}
			if tr.Successes > 0 {
				tr.AvgWallMs = float64(wallSum) / float64(tr.Successes)
			}
			ur.Tiers = append(ur.Tiers, tr)

			fmt.Printf("  %-10s %-15s %d/%d ok, avg %.0fms\n",
				tu.Label, tier.Name, tr.Successes, *runs, tr.AvgWallMs)
		}

		report.Results = append(report.Results, ur)
	}

	printSummary(&report)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal report: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nReport written to %s\n", *output)
}

func doFetch(client *http.Client, url string, render, stealth bool, run int) runResult {
	rr := runResult{Run: run}

	// fresh=true so runs measure real fetches, not cache hits.
	body, _ := json.Marshal(fetchRequest{
		URL:     url,
		Render:  render,
		Stealth: stealth,
		Fresh:   true,
		Timeout: 120000,
	})

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/v1/fetch", bytes.NewReader(body))
	if err != nil {
		rr.Error = err.Error()
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("X-API-Key", *apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	rr.WallMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = err.Error()
		return rr
	}
	defer resp.Body.Close()

	var fr fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		rr.Error = fmt.Sprintf("decode response: %v", err)
		return rr
	}

	if !fr.Success || fr.Data == nil {
		if fr.Error != nil {
			rr.Error = fmt.Sprintf("[%s] %s", fr.Error.Code, fr.Error.Message)
		} else {
			rr.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return rr
	}

	rr.Success = true
	rr.ServerMs = fr.Data.ElapsedMs
	rr.Method = fr.Data.Method
	rr.StatusCode = fr.Data.StatusCode
	rr.ContentLength = len(fr.Data.Content)
	return rr
}

func printSummary(report *benchmarkReport) {
	fmt.Println("\n=== Summary ===")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tTIER\tOK\tAVG WALL MS")
	for _, ur := range report.Results {
		for _, tr := range ur.Tiers {
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%.0f\n",
				ur.Label, tr.Tier, tr.Successes, report.RunsPerURL, tr.AvgWallMs)
		}
	}
	w.Flush()
}
