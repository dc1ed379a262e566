package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/faults"
)

// SnapshotSource fetches a still image from an HTTP camera endpoint.
type SnapshotSource struct {
	url    string
	client *http.Client
}

// NewSnapshot creates a source fetching a still image from url.
func NewSnapshot(url string, timeout time.Duration) *SnapshotSource {
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *SnapshotSource) Frame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", faults.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: camera returned status %d", faults.ErrSourceUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read frame: %v", faults.ErrSourceUnavailable, err)
	}
	return Decode(data)
}
