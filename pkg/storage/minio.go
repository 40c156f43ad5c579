package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage keeps image assets in a MinIO (or S3-compatible) bucket,
// one prefix per document.
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

// MinioConfig holds MinIO connection settings.
type MinioConfig struct {
	Endpoint  string // server endpoint
	AccessKey string // access key id
	SecretKey string // secret access key
	UseSSL    bool   // use TLS
	Bucket    string // bucket name
}

// NewMinioStorage creates a MinIO image store, creating the bucket if needed.
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Save uploads the bytes as <docID>/<ref>. Image assets are small, so
// buffering in memory to hash before upload is acceptable.
func (s *MinioStorage) Save(reader io.Reader, docID string, page int) (ImageInfo, error) {
	if docID == "" {
		return ImageInfo{}, fmt.Errorf("docID cannot be empty")
	}

	ref := uuid.New().String()
	objectName := fmt.Sprintf("%s/%s", docID, ref)

	content, err := io.ReadAll(reader)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to read image content: %w", err)
	}

	digest := sha256.Sum256(content)

	_, err = s.client.PutObject(
		context.Background(),
		s.bucketName,
		objectName,
		bytes.NewReader(content),
		int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to upload image: %w", err)
	}

	return ImageInfo{
		Ref:   ref,
		Hash:  hex.EncodeToString(digest[:]),
		Size:  int64(len(content)),
		DocID: docID,
		Page:  page,
		Path:  objectName,
	}, nil
}

// Get streams a stored asset by reference.
func (s *MinioStorage) Get(ref string) (io.ReadCloser, error) {
	objectName, err := s.findObjectByRef(ref)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(
		context.Background(),
		s.bucketName,
		objectName,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// Delete removes a stored asset.
func (s *MinioStorage) Delete(ref string) error {
	objectName, err := s.findObjectByRef(ref)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		objectName,
		minio.RemoveObjectOptions{},
	); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List enumerates assets, optionally restricted to one document prefix.
func (s *MinioStorage) List(docID string) ([]ImageInfo, error) {
	opts := minio.ListObjectsOptions{Recursive: true}
	if docID != "" {
		opts.Prefix = docID + "/"
	}

	var assets []ImageInfo
	objectCh := s.client.ListObjects(context.Background(), s.bucketName, opts)

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}

		assets = append(assets, ImageInfo{
			Ref:   filepath.Base(object.Key),
			Size:  object.Size,
			DocID: strings.SplitN(object.Key, "/", 2)[0],
			Path:  object.Key,
		})
	}

	return assets, nil
}

// Exists reports whether a reference resolves to a stored object.
func (s *MinioStorage) Exists(ref string) (bool, error) {
	_, err := s.findObjectByRef(ref)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// findObjectByRef locates an object key across document prefixes.
func (s *MinioStorage) findObjectByRef(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("ref cannot be empty")
	}

	assets, err := s.List("")
	if err != nil {
		return "", err
	}
	for _, asset := range assets {
		if asset.Ref == ref {
			return asset.Path, nil
		}
	}
	return "", fmt.Errorf("asset with ref %s not found", ref)
}
