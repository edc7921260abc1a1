package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const cloudinaryResourceRaw = "raw"

// CloudinaryConfig contains credentials required to talk to Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Cloudinary keeps documents as raw Cloudinary assets. Locators are secure delivery URLs.
type Cloudinary struct {
	client     *cloudinary.Cloudinary
	httpClient *http.Client
	folder     string
	logger     zerolog.Logger
}

// NewCloudinary constructs a Cloudinary backed store.
func NewCloudinary(cfg CloudinaryConfig, logger zerolog.Logger) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Cloudinary{
		client:     cld,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		folder:     strings.Trim(cfg.Folder, "/"),
		logger:     logger.With().Str("component", "cloudinary_storage").Logger(),
	}, nil
}

func (c *Cloudinary) Store(ctx context.Context, name string, reader io.Reader) (string, error) {
	result, err := c.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       c.folder,
		PublicID:     uniqueName(name),
		ResourceType: cloudinaryResourceRaw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload document: %w", err)
	}
	if result == nil || result.SecureURL == "" {
		return "", fmt.Errorf("cloudinary returned no delivery url")
	}

	c.logger.Info().Str("public_id", result.PublicID).Msg("document uploaded to cloudinary")
	return result.SecureURL, nil
}

func (c *Cloudinary) Fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	if _, err := PublicIDFromURL(locator); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch document: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Cloudinary) Delete(ctx context.Context, locator string) error {
	publicID, err := PublicIDFromURL(locator)
	if err != nil {
		return err
	}

	result, err := c.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: cloudinaryResourceRaw,
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result != nil && result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("failed to delete document: %s", result.Result)
	}
	return nil
}

// PublicIDFromURL extracts the public id from a delivery URL such as
// https://res.cloudinary.com/demo/raw/upload/v1712/stde/documents/plan.pdf.
func PublicIDFromURL(locator string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}

	_, rest, found := strings.Cut(parsed.Path, "/upload/")
	if !found || rest == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}

	segments := strings.Split(rest, "/")
	if len(segments) > 1 && isVersionSegment(segments[0]) {
		segments = segments[1:]
	}
	publicID := strings.Join(segments, "/")
	if publicID == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return publicID, nil
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
