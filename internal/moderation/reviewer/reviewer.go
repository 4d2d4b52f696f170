package reviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/config"
)

// Client submits jobs to the external review system.
type Client interface {
	Submit(ctx context.Context, jobID, postID snowflake.ID, mediaURL string) error
}

type httpClient struct {
	url    string
	client *http.Client
}

func NewHTTPClient(cfg config.Config) Client {
	return &httpClient{
		url:    cfg.Moderation.ReviewerURL,
		client: &http.Client{Timeout: cfg.Moderation.RequestTimeout},
	}
}

type submitRequest struct {
	JobID    string `json:"job_id"`
	PostID   string `json:"post_id"`
	MediaURL string `json:"media_url"`
}

func (c *httpClient) Submit(ctx context.Context, jobID, postID snowflake.ID, mediaURL string) error {
	body, err := json.Marshal(submitRequest{
		JobID:    jobID.String(),
		PostID:   postID.String(),
		MediaURL: mediaURL,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reviewer returned status %d", resp.StatusCode)
	}
	return nil
}
