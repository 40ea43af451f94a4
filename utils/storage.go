package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sharath018/health-management-backend/config"
)

// FileStore persists uploaded files and returns a URL clients can fetch.
type FileStore interface {
	Save(ctx context.Context, folder, filename string, body io.Reader, contentType string) (string, error)
}

// NewFileStore picks S3 when a bucket is configured, local disk otherwise.
func NewFileStore(ctx context.Context, cfg *config.Config) (FileStore, error) {
	if cfg.S3Bucket == "" {
		log.Info().Str("path", cfg.UploadPath).Msg("using local file storage")
		return &LocalStore{Root: cfg.UploadPath, BaseURL: cfg.BaseURL}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("using s3 file storage")
	return &S3Store{
		Client:        s3.NewFromConfig(awsCfg),
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
	}, nil
}

// ObjectKey builds folder/<uuid><ext> so client file names never reach storage.
func ObjectKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s%s", strings.Trim(folder, "/"), uuid.NewString(), ext)
}

// HasAllowedExtension compares case-insensitively against exts like ".pdf".
func HasAllowedExtension(filename string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range exts {
		if ext == allowed {
			return true
		}
	}
	return false
}

type LocalStore struct {
	Root    string
	BaseURL string
}

func (s *LocalStore) Save(_ context.Context, folder, filename string, body io.Reader, _ string) (string, error) {
	key := ObjectKey(folder, filename)
	dst := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return strings.TrimRight(s.BaseURL, "/") + "/uploads/" + key, nil
}

type S3Store struct {
	Client        *s3.Client
	Bucket        string
	PublicBaseURL string
}

func (s *S3Store) Save(ctx context.Context, folder, filename string, body io.Reader, contentType string) (string, error) {
	key := ObjectKey(folder, filename)
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	if s.PublicBaseURL != "" {
		return s.PublicBaseURL + "/" + key, nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.Bucket, key), nil
}
