package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether enough credentials are present to build a client.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// DocumentStore keeps justification documents in a private Cloudinary folder.
type DocumentStore struct {
	client *cloudinary.Cloudinary
	folder string
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs a Cloudinary document store.
func New(cfg Config, logger zerolog.Logger) (*DocumentStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &DocumentStore{
		client: cld,
		folder: cfg.Folder,
		now:    time.Now,
		logger: logger.With().Str("component", "document_store").Logger(),
	}, nil
}

// Upload stores an already validated image and returns its secure URL as the storage reference.
func (s *DocumentStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	folder := strings.Trim(s.folder, "/")
	if folder == "" {
		folder = "justifications"
	}

	params := uploader.UploadParams{
		Folder:       folder,
		PublicID:     buildPublicID(name, s.now()),
		ResourceType: "image",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload justification document: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("justification document stored")

	return result.SecureURL, nil
}

func buildPublicID(name string, at time.Time) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "document"
	}

	return fmt.Sprintf("%s-%d", base, at.UnixNano())
}
