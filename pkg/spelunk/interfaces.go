package spelunk

import (
	"context"
	"time"
)

// SearchService handles search job operations
type SearchService interface {
	// Create dispatches a search and returns a handle to the job
	Create(ctx context.Context, query string, opts *SearchOptions) (*Job, error)

	// Job returns a handle for an already-dispatched job by SID
	Job(sid string) *Job

	// Run dispatches a search, waits for completion and returns all results
	Run(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, error)
}

// IndexService handles index listings
type IndexService interface {
	// List retrieves all indexes
	List(ctx context.Context) ([]*Index, error)

	// Get retrieves a single index by name
	Get(ctx context.Context, name string) (*Index, error)
}

// AppService handles installed applications
type AppService interface {
	// List retrieves all locally installed apps
	List(ctx context.Context) ([]*App, error)
}

// UserService handles user accounts
type UserService interface {
	// List retrieves all users
	List(ctx context.Context) ([]*User, error)
}

// Index is an event index summary
type Index struct {
	Name               string `json:"name"`
	TotalEventCount    int64  `json:"totalEventCount"`
	CurrentDBSizeMB    int64  `json:"currentDBSizeMB"`
	MaxTotalDataSizeMB int64  `json:"maxTotalDataSizeMB"`
	Disabled           bool   `json:"disabled"`
}

// App is an installed application summary
type App struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Version  string `json:"version"`
	Author   string `json:"author"`
	Visible  bool   `json:"visible"`
	Disabled bool   `json:"disabled"`
}

// User is a user account summary
type User struct {
	Name       string   `json:"name"`
	RealName   string   `json:"realname"`
	Email      string   `json:"email"`
	DefaultApp string   `json:"defaultApp"`
	Roles      []string `json:"roles"`
}

// SearchOptions configures a dispatched search
type SearchOptions struct {
	// EarliestTime and LatestTime bound the search window, in the
	// server's time syntax (e.g. "-24h", "now", epoch seconds).
	EarliestTime string
	LatestTime   string

	// MaxCount caps the number of result rows the job retains
	MaxCount int

	// PollInterval is the initial interval between job status polls while
	// waiting. Zero selects the default.
	PollInterval time.Duration
}

// SearchResult is one result row, keyed by field name
type SearchResult map[string]interface{}

// ResultsPage is one page of search results
type ResultsPage struct {
	Results    []SearchResult `json:"results"`
	InitOffset int            `json:"init_offset"`
	Preview    bool           `json:"preview"`
}

// JobStatus is a snapshot of a search job's state
type JobStatus struct {
	SID           string  `json:"sid"`
	DispatchState string  `json:"dispatchState"`
	IsDone        bool    `json:"isDone"`
	IsFailed      bool    `json:"isFailed"`
	DoneProgress  float64 `json:"doneProgress"`
	ResultCount   int     `json:"resultCount"`
	RunDuration   float64 `json:"runDuration"`
}
