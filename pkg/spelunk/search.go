package spelunk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	searchJobsPath = "/services/search/jobs"

	// Dispatch states reported by the server
	DispatchStateQueued     = "QUEUED"
	DispatchStateParsing    = "PARSING"
	DispatchStateRunning    = "RUNNING"
	DispatchStateFinalizing = "FINALIZING"
	DispatchStateDone       = "DONE"
	DispatchStateFailed     = "FAILED"
)

// searchService implements the SearchService interface
type searchService struct {
	client *Client
}

// Create dispatches a search job and returns a handle carrying its SID.
func (s *searchService) Create(ctx context.Context, query string, opts *SearchOptions) (*Job, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}

	form := url.Values{
		"search":      {normalizeQuery(query)},
		"output_mode": {"json"},
	}
	if opts.EarliestTime != "" {
		form.Set("earliest_time", opts.EarliestTime)
	}
	if opts.LatestTime != "" {
		form.Set("latest_time", opts.LatestTime)
	}
	if opts.MaxCount > 0 {
		form.Set("max_count", strconv.Itoa(opts.MaxCount))
	}

	var created struct {
		SID string `json:"sid"`
	}
	if err := s.client.do(ctx, http.MethodPost, searchJobsPath, nil, form, &created); err != nil {
		return nil, errors.Wrap(err, "failed to create search job")
	}
	if created.SID == "" {
		return nil, errors.New("no sid in search job response")
	}

	return s.Job(created.SID), nil
}

// Job returns a handle for an existing SID
func (s *searchService) Job(sid string) *Job {
	return &Job{
		client:       s.client,
		sid:          sid,
		pollInterval: defaultPollInterval,
	}
}

// Run dispatches a search, waits for it to finish and fetches every result
// page.
func (s *searchService) Run(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, error) {
	job, err := s.Create(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.PollInterval > 0 {
		job.pollInterval = opts.PollInterval
	}

	if err := job.Wait(ctx); err != nil {
		return nil, err
	}
	return job.AllResults(ctx, 0)
}

// normalizeQuery prepends the implicit "search" command the way the
// server's own UI does, so callers can write `index=main error` directly.
// Queries already starting with a command pipe are left alone.
func normalizeQuery(query string) string {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(trimmed, "|") || strings.HasPrefix(lower, "search ") || lower == "search" {
		return trimmed
	}
	return "search " + trimmed
}

// Polling configuration for Job.Wait
const (
	defaultPollInterval = 500 * time.Millisecond
	maxPollInterval     = 5 * time.Second
	pollBackoffFactor   = 1.5
)

// Job is a handle to an asynchronous search job identified by its SID.
// Status fields are a snapshot refreshed by Refresh/Wait.
type Job struct {
	client       *Client
	sid          string
	pollInterval time.Duration

	mu     sync.RWMutex
	status JobStatus
}

// SID returns the job's opaque identifier
func (j *Job) SID() string {
	return j.sid
}

// Status returns the last observed job status snapshot
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Refresh fetches the current job state from the server
func (j *Job) Refresh(ctx context.Context) (JobStatus, error) {
	var feed struct {
		Entry []struct {
			Content JobStatus `json:"content"`
		} `json:"entry"`
	}

	path := searchJobsPath + "/" + url.PathEscape(j.sid)
	if err := j.client.do(ctx, http.MethodGet, path, nil, nil, &feed); err != nil {
		return JobStatus{}, errors.Wrap(err, "failed to refresh job status")
	}
	if len(feed.Entry) == 0 {
		return JobStatus{}, errors.Errorf("job %s not found in status response", j.sid)
	}

	status := feed.Entry[0].Content
	status.SID = j.sid

	j.mu.Lock()
	j.status = status
	j.mu.Unlock()

	return status, nil
}

// Done reports whether the job has finished
func (j *Job) Done(ctx context.Context) (bool, error) {
	status, err := j.Refresh(ctx)
	if err != nil {
		return false, err
	}
	return status.IsDone, nil
}

// Wait polls the job until it completes, fails, or ctx expires. The poll
// interval grows toward a ceiling so long-running jobs are not hammered.
func (j *Job) Wait(ctx context.Context) error {
	interval := j.pollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	checks := 0
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errors.WithMessage(ErrTimeout, "waiting for search job "+j.sid)
			}
			return errors.WithMessage(ErrCancelled, "waiting for search job "+j.sid)

		case <-ticker.C:
			status, err := j.Refresh(ctx)
			if err != nil {
				return err
			}

			if status.IsFailed {
				return errors.Errorf("search job %s failed", j.sid)
			}
			if status.IsDone {
				return nil
			}

			checks++
			if checks%3 == 0 && interval < maxPollInterval {
				interval = time.Duration(float64(interval) * pollBackoffFactor)
				if interval > maxPollInterval {
					interval = maxPollInterval
				}
				ticker.Reset(interval)
			}
		}
	}
}

// Results fetches one page of results. Pages are independent calls: a
// failing page can be re-asked without touching earlier pages.
func (j *Job) Results(ctx context.Context, page *PageOptions) (*ResultsPage, error) {
	query := url.Values{}
	if page != nil {
		query.Set("offset", strconv.Itoa(page.Offset))
		count := page.Count
		if count <= 0 {
			count = defaultPageSize
		}
		query.Set("count", strconv.Itoa(count))
	}

	var results ResultsPage
	path := searchJobsPath + "/" + url.PathEscape(j.sid) + "/results"
	if err := j.client.do(ctx, http.MethodGet, path, query, nil, &results); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch results for job %s", j.sid)
	}
	return &results, nil
}

// AllResults walks every result page sequentially and returns the merged
// rows.
func (j *Job) AllResults(ctx context.Context, pageSize int) ([]SearchResult, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var all []SearchResult
	offset := 0
	for {
		page, err := j.Results(ctx, &PageOptions{Offset: offset, Count: pageSize})
		if err != nil {
			return nil, err
		}

		all = append(all, page.Results...)
		if len(page.Results) < pageSize {
			return all, nil
		}
		offset += len(page.Results)
	}
}

// Cancel asks the server to stop the job
func (j *Job) Cancel(ctx context.Context) error {
	form := url.Values{"action": {"cancel"}}
	path := searchJobsPath + "/" + url.PathEscape(j.sid) + "/control"
	if err := j.client.do(ctx, http.MethodPost, path, nil, form, nil); err != nil {
		return errors.Wrapf(err, "failed to cancel job %s", j.sid)
	}
	return nil
}

// Delete removes the job and its artifacts from the server
func (j *Job) Delete(ctx context.Context) error {
	path := searchJobsPath + "/" + url.PathEscape(j.sid)
	if err := j.client.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return errors.Wrapf(err, "failed to delete job %s", j.sid)
	}
	return nil
}
