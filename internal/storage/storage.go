// Package storage ürün görselleri ve alım fişleri için nesne deposu
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"kasa-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("dosya deposu yapılandırılmamış")

// Uploader: dosyayı yükler ve herkese açık URL'ini döner
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type S3Storage struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        *zap.Logger
}

// New: depo kapalıysa Disabled döner
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Uploader, error) {
	if !cfg.Enabled() {
		return Disabled{}, nil
	}
	return NewS3Storage(ctx, cfg, logger)
}

func NewS3Storage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3Storage, error) {
	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("depo yapılandırması yüklenemedi: %w", err)
	}

	// MinIO uyumluluğu için path-style
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		publicBase = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Storage{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: publicBase,
		logger:        logger,
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("dosya yüklenemedi (%s): %w", key, err)
	}

	s.logger.Info("dosya yüklendi", zap.String("bucket", s.bucket), zap.String("key", key), zap.Int64("size", size))
	return PublicURL(s.publicBaseURL, key), nil
}

// Disabled: depo tanımlı değilken kullanılır
type Disabled struct{}

func (Disabled) Upload(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", ErrNotConfigured
}

// ObjectKey: prefix/uuid.ext
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, uuid.NewString()+ext)
}

func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
