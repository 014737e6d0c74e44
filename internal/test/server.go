package test

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/service/frontend"
)

// Server represents a test HTTP server instance
type Server struct {
	Helper
}

// SetupServer creates and starts a test server instance
func SetupServer(t *testing.T, opts ...HelperOption) Server {
	t.Helper()

	// Create a listener and keep it alive until the server binds.
	// This prevents race conditions where parallel tests could steal the port
	// between finding it and binding to it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to create listener")

	port := listener.Addr().(*net.TCPAddr).Port
	opts = append(opts, WithConfigMutator(func(cfg *config.Config) {
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = port
	}))

	helper := Setup(t, opts...)
	srv := Server{Helper: helper}

	// Pass the pre-bound listener to the server to avoid port race conditions
	server := frontend.NewServer(helper.Config, helper.Store, frontend.WithListener(listener))

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Serve returns once the context is cancelled during cleanup.
		_ = server.Serve(helper.Context)
	}()
	t.Cleanup(func() {
		helper.Cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Log("server did not stop within timeout")
		}
	})

	waitForServerStart(t, fmt.Sprintf("127.0.0.1:%d", port))

	return srv
}

// Client returns an HTTP client for the server
func (srv *Server) Client() *APIClient {
	return &APIClient{
		server: srv,
		client: resty.New(),
	}
}

// APIClient handles HTTP requests to the test server
type APIClient struct {
	server *Server
	client *resty.Client
}

// baseURL returns the base URL for the server
func (c *APIClient) baseURL() string {
	return fmt.Sprintf("http://%s", c.server.Config.Server.Addr())
}

// Request represents an HTTP request being prepared
type Request struct {
	client         *APIClient
	method         string
	path           string
	expectedStatus int
	headers        map[string]string
}

// Get prepares a GET request
func (c *APIClient) Get(path string) *Request {
	return &Request{
		client: c,
		method: http.MethodGet,
		path:   path,
	}
}

// ExpectStatus sets the expected HTTP status code
func (r *Request) ExpectStatus(code int) *Request {
	r.expectedStatus = code
	return r
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// Send executes the request and returns the response
func (r *Request) Send(t *testing.T) *Response {
	t.Helper()

	req := r.client.client.R()
	url := r.client.baseURL() + r.path

	for key, value := range r.headers {
		req.SetHeader(key, value)
	}

	var res *resty.Response
	var err error

	switch r.method {
	case http.MethodGet:
		res, err = req.Get(url)
	default:
		t.Fatalf("unsupported HTTP method: %s", r.method)
	}

	require.NoError(t, err, "failed to make %s request", r.method)

	if r.expectedStatus != 0 {
		require.Equal(t, r.expectedStatus, res.StatusCode(), "unexpected status code")
	}

	return &Response{
		Body:     string(res.Body()),
		Response: res,
	}
}

// Response represents an HTTP response
type Response struct {
	Body     string
	Response *resty.Response
}

// Unmarshal parses the response body into the provided value
func (r *Response) Unmarshal(t *testing.T, v any) {
	t.Helper()
	err := json.Unmarshal([]byte(r.Body), v)
	require.NoError(t, err, "failed to unmarshal response body")
}

// waitForServerStart polls the server until it responds or times out
func waitForServerStart(t *testing.T, addr string) {
	t.Helper()

	const (
		maxRetries = 10
		retryDelay = 100 * time.Millisecond
	)

	for range maxRetries {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(retryDelay)
	}

	t.Fatalf("server failed to start within %v", maxRetries*retryDelay)
}
