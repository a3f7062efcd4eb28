package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

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

// Service stores objects in Cloudinary, addressed by storage path.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload stores the object under objectPath and returns its secure URL.
func (s *Service) Upload(ctx context.Context, objectPath string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		PublicID:     buildPublicID(s.folder, objectPath),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

// Delete removes the object stored under objectPath. Photos and videos live in
// separate resource namespaces, so both are tried.
func (s *Service) Delete(ctx context.Context, objectPath string) error {
	publicID := buildPublicID(s.folder, objectPath)

	for _, resourceType := range []string{"image", "video"} {
		result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
			PublicID:     publicID,
			ResourceType: resourceType,
		})
		if err != nil {
			return fmt.Errorf("failed to delete asset: %w", err)
		}
		if result.Error.Message != "" {
			return fmt.Errorf("failed to delete asset: %s", result.Error.Message)
		}
		if result.Result == "ok" {
			s.logger.Info().Str("public_id", publicID).Str("resource_type", resourceType).Msg("file deleted from cloudinary")
			return nil
		}
	}

	s.logger.Warn().Str("public_id", publicID).Msg("asset not found in cloudinary")
	return nil
}

// buildPublicID maps a storage path such as trips/abc/123-x.jpg onto a
// Cloudinary public id inside the configured folder.
func buildPublicID(folder, objectPath string) string {
	clean := strings.TrimSuffix(objectPath, path.Ext(objectPath))
	clean = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '/' || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, clean)
	clean = strings.Trim(clean, "/-")

	folder = strings.Trim(folder, "/")
	if folder == "" {
		return clean
	}
	return folder + "/" + clean
}
