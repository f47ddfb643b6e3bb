// Package filesync talks to the workspace file-sync sidecar over its
// local HTTP API: pushing and pulling project and dataset files against
// the remote store, and reporting which remote files differ from the
// local tree. The sidecar runs next to the kernel, so the dial timeout
// is short while transfers themselves get a generous total budget.
package filesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is where the sidecar listens inside the kernel pod.
	DefaultBaseURL = "http://localhost:7000/api"
	// DefaultVersion pins the API generation the client speaks.
	DefaultVersion = "v0"

	defaultTotalTimeout = 60 * time.Second
	defaultDialTimeout  = 500 * time.Millisecond

	userAgent = "notesql-kernel-magics"
)

// Option adjusts a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default sidecar address.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.rawBase = base
	}
}

// WithVersion selects another API generation.
func WithVersion(version string) Option {
	return func(c *Client) {
		c.version = version
	}
}

// WithTimeout replaces the total per-request budget.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient substitutes the underlying HTTP client wholesale.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client calls the file-sync sidecar.
type Client struct {
	rawBase string
	version string
	timeout time.Duration
	base    string
	http    *http.Client
}

// NewClient builds a sidecar client with the default local address,
// API version and timeouts unless options say otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		rawBase: DefaultBaseURL,
		version: DefaultVersion,
		timeout: defaultTotalTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.base = strings.TrimSuffix(c.rawBase, "/") + "/" + c.version + "/"

	if c.http == nil {
		c.http = &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
			},
		}
	}

	return c
}

// BaseURL reports the resolved, versioned endpoint prefix.
func (c *Client) BaseURL() string { return c.base }

// FS scopes file operations to one sidecar-managed tree.
func (c *Client) FS(kind FileKind) *FileSystemAPI {
	return &FileSystemAPI{client: c, prefix: "fs/" + string(kind)}
}

// FileSystemAPI drives pull, push, delete, move and status for one
// file kind. Paths are relative to the tree root; an empty path means
// the whole tree.
type FileSystemAPI struct {
	client *Client
	prefix string
}

// Pull replaces local files under path with the remote copies.
func (fs *FileSystemAPI) Pull(ctx context.Context, path string) (*UserMessage, error) {
	var msg UserMessage
	if err := fs.client.call(ctx, http.MethodPost, fs.prefix+"/"+path+"/pull", "pull files", nil, &msg); err != nil {
		return nil, err
	}

	return &msg, nil
}

// Push uploads local files under path to the remote store.
func (fs *FileSystemAPI) Push(ctx context.Context, path string) (*UserMessage, error) {
	var msg UserMessage
	if err := fs.client.call(ctx, http.MethodPost, fs.prefix+"/"+path+"/push", "push files", nil, &msg); err != nil {
		return nil, err
	}

	return &msg, nil
}

// Delete removes path from the remote store.
func (fs *FileSystemAPI) Delete(ctx context.Context, path string) (*UserMessage, error) {
	var msg UserMessage
	if err := fs.client.call(ctx, http.MethodDelete, fs.prefix+"/"+path, "delete files", nil, &msg); err != nil {
		return nil, err
	}

	return &msg, nil
}

// Move renames path to dest in the remote store.
func (fs *FileSystemAPI) Move(ctx context.Context, path, dest string) (*UserMessage, error) {
	var msg UserMessage

	body := map[string]string{"to": dest}
	if err := fs.client.call(ctx, http.MethodPost, fs.prefix+"/"+path+"/move", "move files", body, &msg); err != nil {
		return nil, err
	}

	return &msg, nil
}

// Status reports which remote files under path differ from the local
// tree.
func (fs *FileSystemAPI) Status(ctx context.Context, path string) (*RemoteStatus, error) {
	var status RemoteStatus
	if err := fs.client.call(ctx, http.MethodGet, fs.prefix+"/"+path+"/status", "get file status", nil, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

func (c *Client) call(ctx context.Context, method, endpoint, operation string, body, out any) error {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("filesync: encode %s request: %w", operation, err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+endpoint, reader)
	if err != nil {
		return fmt.Errorf("filesync: build %s request: %w", operation, err)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s", ErrTimeout, operation)
		}

		return fmt.Errorf("filesync: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("filesync: read %s response: %w", operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(payload)),
			Operation:  operation,
		}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %s", ErrBadResponse, operation)
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error

	return errors.As(err, &ne) && ne.Timeout()
}
