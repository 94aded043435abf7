// Package s3 issues presigned URLs for recipe image uploads.
package s3

import (
	"context"
	"fmt"
	"time"

	"recipes-backend/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// DefaultUploadTTL is how long an upload URL stays valid
const DefaultUploadTTL = 2 * time.Minute

// PresignAPI is the subset of s3.PresignClient used for uploads
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ImageSigner implements ports.ImageSigner for one bucket
type ImageSigner struct {
	presigner PresignAPI
	bucket    string
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewImageSigner creates a signer from an S3 client
func NewImageSigner(client *s3.Client, bucket string, ttl time.Duration, logger *zap.Logger) *ImageSigner {
	return newImageSigner(s3.NewPresignClient(client), bucket, ttl, logger)
}

func newImageSigner(presigner PresignAPI, bucket string, ttl time.Duration, logger *zap.Logger) *ImageSigner {
	if ttl <= 0 {
		ttl = DefaultUploadTTL
	}
	return &ImageSigner{
		presigner: presigner,
		bucket:    bucket,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
	}
}

var _ ports.ImageSigner = (*ImageSigner)(nil)

// PresignUpload signs a PUT of key with the given content type
func (s *ImageSigner) PresignUpload(ctx context.Context, key, contentType string) (*ports.PresignedUpload, error) {
	if s.bucket == "" {
		return nil, fmt.Errorf("image bucket is not configured")
	}

	issued := s.now()
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		s.logger.Error("Failed to presign upload",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}

	return &ports.PresignedUpload{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: issued.Add(s.ttl),
	}, nil
}
