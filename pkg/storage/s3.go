package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// MaxImageFileSize is the maximum allowed product image upload (5MB).
	MaxImageFileSize = 5 * 1024 * 1024
	// FolderProductImages is the S3 prefix for product image objects.
	FolderProductImages = "product-images"

	uploadPartSize = 5 * 1024 * 1024
	defaultPresign = 15 * time.Minute
)

// AllowedImageTypes maps accepted MIME types to their canonical extension.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// extContentTypes maps accepted file extensions back to a MIME type.
var extContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ImagesBucket         string
	PresignExpireMinutes int
}

// S3 stores product images: validated server-side uploads in, pre-signed
// download URLs out. Buckets stay private.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates the S3 client. Static credentials from cfg win; with none
// set, the SDK's default chain (env, shared config, instance role) applies.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	} else if logger != nil {
		logger.Warn("s3 using the default AWS credential chain")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	st := &S3{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
	}
	if logger != nil {
		logger.Info("s3 image storage ready",
			zap.String("region", cfg.Region),
			zap.String("bucket", cfg.ImagesBucket))
	}
	return st, nil
}

// ValidateImageFileType reports whether the declared content type or the
// filename extension is an accepted image format.
func ValidateImageFileType(contentType, filename string) bool {
	if _, ok := AllowedImageTypes[strings.ToLower(contentType)]; ok {
		return true
	}
	_, ok := extContentTypes[strings.ToLower(path.Ext(filename))]
	return ok
}

// ContentTypeForFilename derives the MIME type from an image filename.
func ContentTypeForFilename(filename string) string {
	if ct, ok := extContentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ProductImageKey builds the object key
// product-images/{organization_id}/{product_id}{ext}. Keys carry the
// organization prefix so objects stay inside the tenant boundary.
func ProductImageKey(organizationID, productID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := extContentTypes[ext]; !ok {
		ext = ".jpg"
	}
	return path.Join(FolderProductImages, organizationID, productID+ext)
}

// ImagesBucket returns the configured images bucket name.
func (s *S3) ImagesBucket() string { return s.cfg.ImagesBucket }

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return defaultPresign
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// Upload streams body to the bucket through the multipart uploader.
func (s *S3) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if contentLength > 0 {
		input.ContentLength = aws.Int64(contentLength)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// GeneratePresignedDownloadURL returns a time-limited GET URL for key.
func (s *S3) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

// DeleteObject removes one object.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DeleteImage removes a product image from the images bucket.
func (s *S3) DeleteImage(ctx context.Context, key string) error {
	return s.DeleteObject(ctx, s.cfg.ImagesBucket, key)
}
