// Package modelhub is the hub source for model hub repositories served over
// the hub's REST API. It registers itself for the "modelhub" scheme.
package modelhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/hub"
	"github.com/kbukum/modelkit/version"
)

// Scheme is the key scheme this source serves.
const Scheme = "modelhub"

// DefaultEndpoint is the public hub API endpoint.
const DefaultEndpoint = "https://www.modelscope.cn"

func init() {
	hub.RegisterSource(Scheme, func(_ context.Context, settings map[string]any) (hub.Source, error) {
		var cfg Config
		if err := hub.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return New(cfg), nil
	})
}

// Config configures the REST client.
type Config struct {
	Endpoint string `mapstructure:"endpoint"`
	// Token is sent as a bearer token when set.
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
}

// Source lists and downloads repository files over HTTP.
type Source struct {
	endpoint string
	token    string
	client   *http.Client
}

var _ hub.Source = (*Source)(nil)

// New creates a Source.
func New(cfg Config) *Source {
	cfg.ApplyDefaults()
	return &Source{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

type fileEntry struct {
	Name string `json:"Name"`
	Path string `json:"Path"`
	Type string `json:"Type"`
	Size int64  `json:"Size"`
}

type listResponse struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
	Data    struct {
		Files []fileEntry `json:"Files"`
	} `json:"Data"`
}

// List returns the blob entries of the repository tree.
func (s *Source) List(ctx context.Context, ref hub.Ref) ([]hub.File, error) {
	q := url.Values{}
	q.Set("Revision", ref.Revision)
	q.Set("Recursive", "True")
	u := fmt.Sprintf("%s/api/v1/models/%s/repo/files?%s", s.endpoint, ref.Path, q.Encode())

	resp, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "model", ref.String()); err != nil {
		return nil, err
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding file list: %w", err)
	}
	if body.Code != 0 && body.Code != http.StatusOK {
		return nil, fmt.Errorf("hub returned code %d: %s", body.Code, body.Message)
	}

	files := make([]hub.File, 0, len(body.Data.Files))
	for _, f := range body.Data.Files {
		if f.Type == "tree" {
			continue
		}
		p := f.Path
		if p == "" {
			p = f.Name
		}
		files = append(files, hub.File{Path: p, Size: f.Size})
	}
	return files, nil
}

// Fetch streams one file into w.
func (s *Source) Fetch(ctx context.Context, ref hub.Ref, file hub.File, w io.Writer) error {
	q := url.Values{}
	q.Set("Revision", ref.Revision)
	q.Set("FilePath", file.Path)
	u := fmt.Sprintf("%s/api/v1/models/%s/repo?%s", s.endpoint, ref.Path, q.Encode())

	resp, err := s.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "file", file.Path); err != nil {
		return err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", file.Path, err)
	}
	if file.Size > 0 && n != file.Size {
		return fmt.Errorf("downloading %s: got %d bytes, want %d", file.Path, n, file.Size)
	}
	return nil
}

func (s *Source) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", u, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response, resource, id string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound(resource, id)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		appErr := errors.New(errors.ErrCodeNotFound, fmt.Sprintf("%s %q is not accessible: %s", resource, id, resp.Status))
		return appErr.WithDetail("status", resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status for %s %q: %s", resource, id, resp.Status)
	}
}
