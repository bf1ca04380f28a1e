package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/strixlab/spelunker/pkg/spelunk"
)

// Listing wraps a resource listing for JSON output.
type Listing struct {
	GeneratedAt string      `json:"generatedAt"`
	Profile     string      `json:"profile,omitempty"`
	Kind        string      `json:"kind"`
	Count       int         `json:"count"`
	Entries     interface{} `json:"entries"`
}

// PrintListingJSON prints one resource listing as indented JSON.
func PrintListingJSON(w io.Writer, profile, kind string, count int, entries interface{}) error {
	return printJSON(w, Listing{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Profile:     profile,
		Kind:        kind,
		Count:       count,
		Entries:     entries,
	})
}

// PrintResultsJSON prints search result rows as indented JSON.
func PrintResultsJSON(w io.Writer, results []spelunk.SearchResult) error {
	if results == nil {
		results = []spelunk.SearchResult{}
	}
	return printJSON(w, results)
}

// PrintFleetReportJSON prints a multi-target report as indented JSON.
func PrintFleetReportJSON(w io.Writer, report *spelunk.FleetReport) error {
	return printJSON(w, report)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	fmt.Fprintln(w, string(data))
	return nil
}
