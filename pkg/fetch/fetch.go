// Package fetch downloads card images over HTTP with size and time limits.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/cardsynth/pkg/imagefile"
)

// Errors returned for downloads that should be skipped rather than retried.
var (
	ErrTooLarge = errors.New("image exceeds size limit")
	ErrTooSmall = errors.New("image below minimum height")
)

// Config holds download limits.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	MinHeight int
	UserAgent string
}

// DefaultConfig returns the download limits used for dataset generation.
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Second,
		MaxBytes:  5_000_000,
		MinHeight: 100,
		UserAgent: "cardsynth/1.0",
	}
}

// Fetcher downloads and decodes card images.
type Fetcher struct {
	config Config
	client *http.Client
}

// New creates a Fetcher with the given configuration.
func New(config Config) *Fetcher {
	return &Fetcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// NewWithClient creates a Fetcher that uses a caller-supplied HTTP client.
func NewWithClient(config Config, client *http.Client) *Fetcher {
	return &Fetcher{config: config, client: client}
}

// LoadImage downloads and decodes the image at imageURL.
func (f *Fetcher) LoadImage(ctx context.Context, imageURL string) (image.Image, error) {
	// Validate URL
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	body := io.Reader(resp.Body)
	if f.config.MaxBytes > 0 {
		if resp.ContentLength > f.config.MaxBytes {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
		}
		body = io.LimitReader(resp.Body, f.config.MaxBytes+1)
	}

	imageData, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if f.config.MaxBytes > 0 && int64(len(imageData)) > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.config.MaxBytes)
	}

	img, err := imagefile.Decode(imageData)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dy() < f.config.MinHeight {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooSmall, img.Bounds().Dy(), f.config.MinHeight)
	}
	return img, nil
}
