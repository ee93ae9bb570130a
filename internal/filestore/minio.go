package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioConfig holds the parameters needed to connect to a MinIO (or any S3 compatible) server.
type MinioConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey" mask:"true"`
	Bucket          string `yaml:"bucket" default:"images"`
	Region          string `yaml:"region" default:"us-east-1"`
	UseSSL          bool   `yaml:"useSSL"`
}

// Validate checks the fields that are required to connect.
func (c MinioConfig) Validate() error {
	switch {
	case c.Endpoint == "":
		return errors.New("missing minio config: endpoint")
	case c.AccessKeyID == "":
		return errors.New("missing minio config: accessKeyID")
	case c.SecretAccessKey == "":
		return errors.New("missing minio config: secretAccessKey")
	case c.Bucket == "":
		return errors.New("missing minio config: bucket")
	}
	return nil
}

// Minio stores blobs as objects in a bucket.
type Minio struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
	now    func() time.Time
}

var _ Store = (*Minio)(nil)

// NewMinio connects to the server and creates the bucket if it does not exist yet.
func NewMinio(ctx context.Context, cfg MinioConfig, log *zap.Logger) (*Minio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("could not check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("could not create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Minio{client: client, bucket: cfg.Bucket, log: log.Named("filestore"), now: time.Now}, nil
}

func (s *Minio) Store(ctx context.Context, content io.Reader, originalName string) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("could not read upload: %w", err)
	}
	contentType := mimetype.Detect(data).String()
	for range maxNameAttempts {
		name := NewName(originalName, s.now())
		taken, err := s.Exists(ctx, name)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return "", fmt.Errorf("could not put object %s: %w", name, err)
		}
		s.log.Debug("stored object", zap.String("filename", name), zap.String("contentType", contentType))
		return name, nil
	}
	return "", fmt.Errorf("could not generate a unique object name after %d attempts", maxNameAttempts)
}

func (s *Minio) Delete(ctx context.Context, name string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		s.log.Warn("object to delete does not exist", zap.String("filename", name))
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("could not remove object %s: %w", name, err)
	}
	s.log.Debug("deleted object", zap.String("filename", name))
	return nil
}

func (s *Minio) Exists(ctx context.Context, name string) (bool, error) {
	if !validName(name) {
		return false, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("could not stat object %s: %w", name, err)
	}
	return true, nil
}

func (s *Minio) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotExist
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("could not get object %s: %w", name, err)
	}
	return obj, nil
}
