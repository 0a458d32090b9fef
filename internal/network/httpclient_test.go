// internal/network/httpclient_test.go
package network

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Configuration and Defaults --

func TestNewDefaultClientConfig(t *testing.T) {
	config := NewDefaultClientConfig()

	assert.Equal(t, DefaultRequestTimeout, config.RequestTimeout)
	assert.Equal(t, DefaultResponseHeaderTimeout, config.ResponseHeaderTimeout)
	assert.Equal(t, DefaultMaxIdleConns, config.MaxIdleConns)
	assert.True(t, config.ForceHTTP2, "HTTP/2 should be preferred by default")
	assert.NotNil(t, config.Logger)
}

func TestNewHTTPTransport(t *testing.T) {
	config := NewDefaultClientConfig()
	config.MaxIdleConnsPerHost = 3
	config.Logger = nil

	transport := NewHTTPTransport(config)
	require.NotNil(t, transport)
	assert.Equal(t, 3, transport.MaxIdleConnsPerHost)
	assert.Equal(t, uint16(0x0303), transport.TLSClientConfig.MinVersion)
	assert.True(t, transport.ForceAttemptHTTP2)
}

func TestNewClientWithTimeout(t *testing.T) {
	c := NewClientWithTimeout(2*time.Second, nil)
	assert.Equal(t, 2*time.Second, c.Timeout)

	c = NewClientWithTimeout(0, nil)
	assert.Equal(t, DefaultRequestTimeout, c.Timeout)
}

// -- Requests --

func TestClient_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok "+r.URL.Path)
	}))
	defer srv.Close()

	c := NewClient(nil)
	resp, err := c.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok /ping", string(body))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClientWithTimeout(50*time.Millisecond, nil)
	_, err := c.Get(srv.URL)
	require.Error(t, err)
}
