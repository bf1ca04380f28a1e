package spelunk

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

const appsPath = "/services/apps/local"

// appService implements the AppService interface
type appService struct {
	client *Client
}

// List retrieves all locally installed apps
func (s *appService) List(ctx context.Context) ([]*App, error) {
	entries, err := s.client.listAll(ctx, appsPath, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list apps")
	}

	apps := make([]*App, 0, len(entries))
	for _, entry := range entries {
		app := &App{Name: entry.Name}
		if len(entry.Content) > 0 {
			if err := json.Unmarshal(entry.Content, app); err != nil {
				return nil, errors.Wrapf(err, "failed to decode app %q", entry.Name)
			}
		}
		app.Name = entry.Name
		apps = append(apps, app)
	}
	return apps, nil
}
