package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
	"github.com/noah-isme/feedback-sessions-api/internal/service"
)

func main() {
	var (
		inputPath    string
		expectedPath string
	)

	flag.StringVar(&inputPath, "input", "-", "JSON array of responses, '-' for stdin")
	flag.StringVar(&expectedPath, "expected", "", "Stored compiled stats to compare against")
	flag.Parse()

	responses, err := loadResponses(inputPath)
	if err != nil {
		log.Fatalf("failed to load responses: %v", err)
	}

	stats := service.CompileStats(responses)
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode stats: %v", err)
	}
	fmt.Println(string(out))

	if expectedPath == "" {
		return
	}
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		log.Fatalf("failed to read expected stats: %v", err)
	}
	diffs, err := compareStats(out, expected)
	if err != nil {
		log.Fatalf("failed to compare stats: %v", err)
	}
	printReport(os.Stderr, diffs)
	if len(diffs) > 0 {
		os.Exit(1)
	}
}

func loadResponses(path string) ([]models.Response, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var responses []models.Response
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return responses, nil
}

func printReport(w io.Writer, diffs []string) {
	if len(diffs) == 0 {
		fmt.Fprintln(w, "Stats match")
		return
	}
	fmt.Fprintln(w, "Stats drift")
	fmt.Fprintln(w, "===========")
	for _, diff := range diffs {
		fmt.Fprintf(w, "  %s\n", diff)
	}
}
