// seed_market_caps.go reads a sector,market_cap CSV and pushes it to the
// pulse API as the new default weighting.
//
// Usage:
//
//	go run scripts/seed_market_caps.go -csv market_caps.csv -api http://localhost:8700 -token $PULSE_ADMIN_TOKEN
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
)

type defaultsRequest struct {
	MarketCaps map[string]float64 `json:"market_caps"`
}

func main() {
	csvPath := flag.String("csv", "market_caps.csv", "path to sector,market_cap CSV")
	apiURL := flag.String("api", "http://localhost:8700", "pulse API base URL")
	token := flag.String("token", os.Getenv("PULSE_ADMIN_TOKEN"), "admin bearer token")
	clientID := flag.String("client", "seed", "X-Client-ID header value")
	dryRun := flag.Bool("dry-run", false, "print caps without posting")
	flag.Parse()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	caps, err := readCaps(f)
	if err != nil {
		log.Fatalf("parse %s: %v", *csvPath, err)
	}
	log.Printf("parsed %d sectors from %s", len(caps), *csvPath)

	if *dryRun {
		names := make([]string, 0, len(caps))
		for name := range caps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-28s %.0f\n", name, caps[name])
		}
		return
	}

	body, _ := json.Marshal(defaultsRequest{MarketCaps: caps})
	req, err := http.NewRequest(http.MethodPut, *apiURL+"/api/v1/weights/defaults", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", *clientID)
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("put defaults: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("put defaults: status %d: %s", resp.StatusCode, strings.TrimSpace(string(out)))
	}
	log.Printf("defaults updated: %s", strings.TrimSpace(string(out)))
}

// readCaps accepts an optional header row. Market caps may carry thousands
// separators or a leading $.
func readCaps(r io.Reader) (map[string]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	caps := make(map[string]float64)
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		raw := strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(rec[1]))
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: market cap %q: %w", line, rec[1], err)
		}
		caps[strings.TrimSpace(rec[0])] = v
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("no market caps found")
	}
	return caps, nil
}
