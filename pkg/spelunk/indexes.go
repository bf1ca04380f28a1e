package spelunk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

const indexesPath = "/services/data/indexes"

// indexService implements the IndexService interface
type indexService struct {
	client *Client
}

// List retrieves all indexes, paging through the collection.
func (s *indexService) List(ctx context.Context) ([]*Index, error) {
	entries, err := s.client.listAll(ctx, indexesPath, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list indexes")
	}

	indexes := make([]*Index, 0, len(entries))
	for _, entry := range entries {
		idx := &Index{Name: entry.Name}
		if len(entry.Content) > 0 {
			if err := json.Unmarshal(entry.Content, idx); err != nil {
				return nil, errors.Wrapf(err, "failed to decode index %q", entry.Name)
			}
		}
		idx.Name = entry.Name
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// Get retrieves a single index by name
func (s *indexService) Get(ctx context.Context, name string) (*Index, error) {
	var feed collectionFeed
	path := indexesPath + "/" + url.PathEscape(name)
	if err := s.client.do(ctx, http.MethodGet, path, nil, nil, &feed); err != nil {
		return nil, errors.Wrapf(err, "failed to get index %q", name)
	}
	if len(feed.Entry) == 0 {
		return nil, ErrNotFound
	}

	entry := feed.Entry[0]
	idx := &Index{Name: entry.Name}
	if len(entry.Content) > 0 {
		if err := json.Unmarshal(entry.Content, idx); err != nil {
			return nil, errors.Wrapf(err, "failed to decode index %q", name)
		}
	}
	idx.Name = entry.Name
	return idx, nil
}
