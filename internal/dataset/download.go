package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfman30/patientsim/pkg/logging"
)

const (
	DefaultBaseURL = "https://physionet.org/files/persona-patientsim"
	DefaultVersion = "1.0.0"

	defaultTimeout = 2 * time.Minute
)

// ErrAuthentication is returned when PhysioNet rejects the credentials.
var ErrAuthentication = errors.New("dataset: physionet authentication failed; check credentials and dataset access")

// Downloader fetches release files from PhysioNet over HTTP basic auth.
type Downloader struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithBaseURL points the downloader at a mirror or test server.
func WithBaseURL(u string) Option {
	return func(d *Downloader) {
		d.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.httpClient = c
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(d *Downloader) {
		d.logger = l
	}
}

// NewDownloader creates a downloader for the given PhysioNet account.
func NewDownloader(username, password string, opts ...Option) *Downloader {
	d := &Downloader{
		baseURL:  DefaultBaseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Default()
	}
	return d
}

// ProfileURL returns the URL of patient_profile.json for version.
func (d *Downloader) ProfileURL(version string) (string, error) {
	if version == "" {
		version = DefaultVersion
	}
	return url.JoinPath(d.baseURL, version, ProfileFile)
}

// DownloadProfile streams patient_profile.json for version into w.
func (d *Downloader) DownloadProfile(ctx context.Context, version string, w io.Writer) (int64, error) {
	if d.username == "" || d.password == "" {
		return 0, fmt.Errorf("%w: username and password are required", ErrAuthentication)
	}
	fileURL, err := d.ProfileURL(version)
	if err != nil {
		return 0, fmt.Errorf("dataset: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, fmt.Errorf("dataset: build request: %w", err)
	}
	req.SetBasicAuth(d.username, d.password)

	d.logger.Info("downloading patient profiles", "url", fileURL)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("dataset: download %s: %w", fileURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, fmt.Errorf("%w (status %d)", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("dataset: download %s: status %d: %s", fileURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("dataset: read body: %w", err)
	}
	return n, nil
}

// DownloadProfileTo saves patient_profile.json into dir and returns its
// path. The file is written to a temporary name and renamed on success.
func (d *Downloader) DownloadProfileTo(ctx context.Context, version, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("dataset: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ProfileFile+".*.part")
	if err != nil {
		return "", fmt.Errorf("dataset: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := d.DownloadProfile(ctx, version, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("dataset: close temp file: %w", closeErr)
	}
	if err != nil {
		return "", err
	}

	dest := filepath.Join(dir, ProfileFile)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("dataset: move into place: %w", err)
	}
	d.logger.Info("patient profiles saved", "path", dest, "bytes", n)
	return dest, nil
}
