package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/network"
)

// HTTP reads objects from a public base URL and writes them with an
// authenticated PUT to the same location.
type HTTP struct {
	base   *url.URL
	token  string
	client *network.Client
	log    *zap.Logger
}

// NewHTTP creates an HTTP store rooted at baseURL.
func NewHTTP(baseURL, token string, timeout time.Duration, logger *zap.Logger) (*HTTP, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid blob base URL %q", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	log := logger.Named("blob")
	return &HTTP{
		base:   u,
		token:  token,
		client: network.NewClientWithTimeout(timeout, log),
		log:    log,
	}, nil
}

func (h *HTTP) objectURL(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return h.base.JoinPath(name).String(), nil
}

// Open fetches an object. The caller closes the returned reader.
func (h *HTTP) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	target, err := h.objectURL(name)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", schemas.ErrBlobNotFound, name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %d", name, resp.StatusCode)
	}
	h.log.Debug("Fetched blob", zap.String("name", name), zap.Int64("size", resp.ContentLength))
	return resp.Body, nil
}

// Put uploads an object.
func (h *HTTP) Put(ctx context.Context, name string, r io.Reader, contentType string) error {
	if h.token == "" {
		return errors.New("blob token is required for uploads. Ensure ARI_BLOB_TOKEN is set")
	}
	target, err := h.objectURL(name)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("failed to upload %s: status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	h.log.Info("Uploaded blob", zap.String("name", name), zap.String("url", target))
	return nil
}
