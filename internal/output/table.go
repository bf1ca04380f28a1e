// Package output renders listings and fleet reports as tables or JSON.
package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/strixlab/spelunker/pkg/spelunk"
)

// PrintIndexes formats and prints indexes as an ASCII table.
func PrintIndexes(w io.Writer, indexes []*spelunk.Index) {
	if len(indexes) == 0 {
		fmt.Fprintln(w, "No indexes found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Index", "Events", "Size (MB)", "Max Size (MB)", "Status")

	for _, idx := range indexes {
		status := "enabled"
		if idx.Disabled {
			status = "disabled"
		}
		table.Append(
			idx.Name,
			strconv.FormatInt(idx.TotalEventCount, 10),
			strconv.FormatInt(idx.CurrentDBSizeMB, 10),
			strconv.FormatInt(idx.MaxTotalDataSizeMB, 10),
			status,
		)
	}

	table.Render()
}

// PrintApps formats and prints installed apps as an ASCII table.
func PrintApps(w io.Writer, apps []*spelunk.App) {
	if len(apps) == 0 {
		fmt.Fprintln(w, "No apps found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("App", "Label", "Version", "Status")

	for _, app := range apps {
		status := "enabled"
		if app.Disabled {
			status = "disabled"
		}
		table.Append(app.Name, app.Label, app.Version, status)
	}

	table.Render()
}

// PrintUsers formats and prints user accounts as an ASCII table.
func PrintUsers(w io.Writer, users []*spelunk.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("User", "Real Name", "Email", "Roles")

	for _, u := range users {
		roles := ""
		for i, r := range u.Roles {
			if i > 0 {
				roles += ", "
			}
			roles += r
		}
		table.Append(u.Name, u.RealName, u.Email, roles)
	}

	table.Render()
}

// PrintSearchResults prints result rows as a table. Columns are the union
// of field names across rows, with internal fields (_time, _raw) first.
func PrintSearchResults(w io.Writer, results []spelunk.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	fields := resultFields(results)
	header := make([]interface{}, len(fields))
	for i, f := range fields {
		header[i] = f
	}

	// Field names are data here: _time must not become TIME.
	table := tablewriter.NewTable(w, tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header(header...)

	for _, row := range results {
		cells := make([]interface{}, len(fields))
		for i, field := range fields {
			if v, ok := row[field]; ok {
				cells[i] = fmt.Sprint(v)
			} else {
				cells[i] = ""
			}
		}
		table.Append(cells...)
	}

	table.Render()
	fmt.Fprintf(w, "%d results\n", len(results))
}

// PrintFleetReport formats a multi-target report as one table, a row per
// profile/resource pair.
func PrintFleetReport(w io.Writer, report *spelunk.FleetReport) {
	if len(report.Profiles) == 0 {
		fmt.Fprintln(w, "No profiles.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Profile", "Target", "Resource", "Count", "Status")

	for _, p := range report.Profiles {
		if p.Error != "" {
			table.Append(p.Profile, p.BaseURL, "-", "-", "error: "+p.Error)
			continue
		}
		for _, r := range p.Resources {
			count := strconv.Itoa(r.Count)
			status := r.Status
			if r.Error != "" {
				status = fmt.Sprintf("%s: %s", r.Status, r.Error)
				count = "-"
			}
			table.Append(p.Profile, p.BaseURL, string(r.Kind), count, status)
		}
	}

	table.Render()
}

// resultFields returns the union of field names, internal fields first.
func resultFields(results []spelunk.SearchResult) []string {
	seen := map[string]bool{}
	var internal, regular []string
	for _, row := range results {
		for field := range row {
			if seen[field] {
				continue
			}
			seen[field] = true
			if field != "" && field[0] == '_' {
				internal = append(internal, field)
			} else {
				regular = append(regular, field)
			}
		}
	}
	sort.Strings(internal)
	sort.Strings(regular)
	return append(internal, regular...)
}
