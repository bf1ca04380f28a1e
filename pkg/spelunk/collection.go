package spelunk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// defaultPageSize matches the server's default collection page size.
const defaultPageSize = 30

// PageOptions selects one page of a collection. Pages are stateless and
// independently retryable; nothing is shared between them except the
// session.
type PageOptions struct {
	// Offset of the first entry, zero-based.
	Offset int

	// Count of entries per page. Zero selects the default page size.
	Count int
}

// collectionEntry is one named resource in a collection listing. Content
// holds the resource-specific properties, decoded by each service.
type collectionEntry struct {
	Name    string          `json:"name"`
	ID      string          `json:"id"`
	Content json.RawMessage `json:"content"`
}

// collectionPaging is the server's paging envelope.
type collectionPaging struct {
	Total   int `json:"total"`
	PerPage int `json:"perPage"`
	Offset  int `json:"offset"`
}

// collectionFeed is the Atom-style JSON envelope every collection endpoint
// returns.
type collectionFeed struct {
	Entry  []collectionEntry `json:"entry"`
	Paging collectionPaging  `json:"paging"`
}

// getCollection fetches one page of a collection.
func (c *Client) getCollection(ctx context.Context, path string, page *PageOptions) (*collectionFeed, error) {
	query := url.Values{}
	if page != nil {
		query.Set("offset", strconv.Itoa(page.Offset))
		count := page.Count
		if count <= 0 {
			count = defaultPageSize
		}
		query.Set("count", strconv.Itoa(count))
	}

	var feed collectionFeed
	if err := c.do(ctx, http.MethodGet, path, query, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// listAll walks a collection page by page, sequentially. Each page is one
// independent call through the retry executor: a failure (then recovery)
// on page k never re-fetches pages before k, because the accumulated
// entries stay here and only the failing offset is asked for again.
func (c *Client) listAll(ctx context.Context, path string, pageSize int) ([]collectionEntry, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var all []collectionEntry
	offset := 0
	for {
		feed, err := c.getCollection(ctx, path, &PageOptions{Offset: offset, Count: pageSize})
		if err != nil {
			return nil, errors.Wrapf(err, "fetching page at offset %d", offset)
		}

		all = append(all, feed.Entry...)
		offset += len(feed.Entry)

		if len(feed.Entry) == 0 || offset >= feed.Paging.Total {
			return all, nil
		}
	}
}
