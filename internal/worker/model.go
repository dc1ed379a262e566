package worker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/modelapi"
)

// Model is the classifier hosted by a worker.
type Model interface {
	// Load prepares the model, reporting per-file progress through report.
	Load(ctx context.Context, report func(Reply)) error
	// Classify returns predictions for an encoded image, best first.
	Classify(ctx context.Context, image []byte) (emotion.Result, error)
}

// RemoteModel delegates to the inference server.
type RemoteModel struct {
	client *modelapi.Client
	poll   time.Duration
}

// NewRemoteModel creates a model backed by the inference server.
func NewRemoteModel(client *modelapi.Client) *RemoteModel {
	return &RemoteModel{client: client, poll: constants.ModelStatusPollInterval}
}

// Load polls /model/status until the server reports ready, translating its
// file list into Initiated, Progressed and FileDone replies. A 503 means the
// server is still starting and is retried.
func (m *RemoteModel) Load(ctx context.Context, report func(Reply)) error {
	seen := make(map[string]float64)
	done := make(map[string]bool)
	var order []string

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		status, err := m.client.ModelStatus(ctx)
		var apiErr *modelapi.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable:
			// not up yet
		case err != nil:
			return fmt.Errorf("failed to fetch model status: %w", err)
		case status.Error != "":
			return errors.New(status.Error)
		default:
			for _, f := range status.Files {
				if done[f.File] {
					continue
				}
				last, ok := seen[f.File]
				if !ok {
					order = append(order, f.File)
					report(Initiated{File: f.File})
					last = -1
				}
				if p := f.Progress(); p != last {
					seen[f.File] = p
					report(Progressed{File: f.File, Progress: p})
				}
				if f.Done() {
					done[f.File] = true
					report(FileDone{File: f.File})
				}
			}
			if status.Ready {
				for _, file := range order {
					if !done[file] {
						report(FileDone{File: file})
					}
				}
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *RemoteModel) Classify(ctx context.Context, image []byte) (emotion.Result, error) {
	resp, err := m.client.ClassifyEmotion(ctx, image)
	if err != nil {
		return nil, err
	}

	out := make(emotion.Result, len(resp.Predictions))
	for i, p := range resp.Predictions {
		out[i] = emotion.Prediction{Label: emotion.ParseTag(p.Label), Score: p.Score}
	}
	slices.SortStableFunc(out, func(a, b emotion.Prediction) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out, nil
}
