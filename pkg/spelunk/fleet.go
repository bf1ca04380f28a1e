package spelunk

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/strixlab/spelunker/internal/types"
)

// DefaultResourceTimeout bounds each profile/resource fetch in a fleet run
const DefaultResourceTimeout = 30 * time.Second

// ResourceKind names a fetchable resource collection
type ResourceKind string

const (
	ResourceIndexes ResourceKind = "indexes"
	ResourceApps    ResourceKind = "apps"
	ResourceUsers   ResourceKind = "users"
)

// Resource summary statuses
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Profile is one named set of connection and credential settings
// identifying a remote target.
type Profile struct {
	Name          string        `json:"name"`
	BaseURL       string        `json:"base_url"`
	Token         string        `json:"-"`
	Username      string        `json:"-"`
	Password      string        `json:"-"`
	SkipTLSVerify bool          `json:"skip_tls_verify"`
	Timeout       time.Duration `json:"timeout"`
}

// clientOptions builds per-profile client options.
func (p Profile) clientOptions(opts *FleetOptions) *ClientOptions {
	co := &ClientOptions{
		BaseURL:       p.BaseURL,
		Token:         p.Token,
		Username:      p.Username,
		Password:      p.Password,
		SkipTLSVerify: p.SkipTLSVerify,
		Timeout:       p.Timeout,
	}
	if opts != nil {
		co.RetryPolicy = opts.RetryPolicy
		co.Logger = opts.Logger
	}
	return co
}

// ResourceSummary is the outcome of fetching one resource kind from one
// profile.
type ResourceSummary struct {
	Kind   ResourceKind `json:"kind"`
	Count  int          `json:"count"`
	Status string       `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// ProfileResult is the outcome for one target. A failed profile never
// aborts its siblings.
type ProfileResult struct {
	Profile   string            `json:"profile"`
	BaseURL   string            `json:"base_url"`
	Resources []ResourceSummary `json:"resources"`
	Error     string            `json:"error,omitempty"`
}

// FleetReport is the merged outcome of one multi-target run
type FleetReport struct {
	Timestamp time.Time       `json:"timestamp"`
	Profiles  []ProfileResult `json:"profiles"`
}

// FleetOptions tunes a multi-target run
type FleetOptions struct {
	// ResourceTimeout bounds each profile/resource fetch. Expiry marks
	// that one resource as timed out; it is not retried and does not fail
	// the profile. Zero selects DefaultResourceTimeout.
	ResourceTimeout time.Duration

	// RetryPolicy for the per-profile clients
	RetryPolicy *types.RetryPolicy

	// Logger for the per-profile clients
	Logger types.Logger
}

// FetchAll runs the same fetch against every profile concurrently and
// merges the outcomes into one report. It waits for every profile to
// finish; there is no short-circuit on first error.
func FetchAll(ctx context.Context, profiles []Profile, kinds []ResourceKind, opts *FleetOptions) *FleetReport {
	if opts == nil {
		opts = &FleetOptions{}
	}
	if len(kinds) == 0 {
		kinds = []ResourceKind{ResourceIndexes, ResourceApps, ResourceUsers}
	}

	report := &FleetReport{
		Timestamp: time.Now().UTC(),
		Profiles:  make([]ProfileResult, len(profiles)),
	}

	var wg sync.WaitGroup
	for i, profile := range profiles {
		wg.Add(1)
		go func(i int, profile Profile) {
			defer wg.Done()
			report.Profiles[i] = fetchProfile(ctx, profile, kinds, opts)
		}(i, profile)
	}
	wg.Wait()

	return report
}

// fetchProfile collects every requested resource kind from one target.
// Failures are isolated: a bad credential fails the profile, a slow or
// broken resource fails only that resource.
func fetchProfile(ctx context.Context, profile Profile, kinds []ResourceKind, opts *FleetOptions) ProfileResult {
	result := ProfileResult{
		Profile: profile.Name,
		BaseURL: profile.BaseURL,
	}

	client, err := NewClient(profile.clientOptions(opts))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer client.Close()

	timeout := opts.ResourceTimeout
	if timeout <= 0 {
		timeout = DefaultResourceTimeout
	}

	// Preflight the credential exchange so an unreachable target or an
	// invalid login fails the profile once instead of every resource.
	loginCtx, cancel := context.WithTimeout(ctx, timeout)
	_, err = client.Login(loginCtx)
	cancel()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	for _, kind := range kinds {
		kindCtx, cancel := context.WithTimeout(ctx, timeout)
		count, err := fetchResourceCount(kindCtx, client, kind)
		cancel()

		summary := ResourceSummary{Kind: kind, Count: count, Status: StatusOK}
		switch {
		case err == nil:
		case IsTimeout(err):
			summary.Status = StatusTimeout
			summary.Error = err.Error()
			summary.Count = 0
		default:
			summary.Status = StatusError
			summary.Error = err.Error()
			summary.Count = 0
		}
		result.Resources = append(result.Resources, summary)
	}

	return result
}

// fetchResourceCount fetches one resource kind and reports how many
// entries the target has.
func fetchResourceCount(ctx context.Context, client *Client, kind ResourceKind) (int, error) {
	switch kind {
	case ResourceIndexes:
		indexes, err := client.Indexes.List(ctx)
		return len(indexes), err
	case ResourceApps:
		apps, err := client.Apps.List(ctx)
		return len(apps), err
	case ResourceUsers:
		users, err := client.Users.List(ctx)
		return len(users), err
	default:
		return 0, errors.Errorf("unknown resource kind %q", kind)
	}
}
