package salt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/yawdotio/totalbeginers-Suitters/types"
)

var ErrSaltService = errors.New("salt service unavailable")

// Client fetches salts from a remote salt endpoint.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// GetSalt posts the token and returns the salt. Every failure wraps ErrSaltService.
func (c *Client) GetSalt(ctx context.Context, token string) (string, error) {
	body, err := json.Marshal(types.SaltRequest{JWT: token})
	if err != nil {
		return "", errors.Wrap(ErrSaltService, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(ErrSaltService, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(ErrSaltService, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errors.Wrapf(ErrSaltService, "salt request failed: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out types.SaltResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(ErrSaltService, "decode salt response")
	}
	if out.Salt == "" {
		return "", errors.Wrap(ErrSaltService, "empty salt")
	}
	return out.Salt, nil
}
