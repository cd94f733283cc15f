// Package storage keeps the original uploaded files in object storage, keyed
// by document id.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pdfrag/config"
	s3client "pdfrag/pkg/s3"
	"pdfrag/pkg/logger"
)

// ErrNotFound reports that no object exists for the requested document id.
var ErrNotFound = errors.New("storage: object not found")

const (
	metaFilename   = "filename"
	metaUploadDate = "upload-date"
)

type Service struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
}

// ObjectInfo describes one stored file.
type ObjectInfo struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"uploadDate"`
	LastModified time.Time `json:"lastModified"`
}

// New builds the service and makes sure the bucket exists.
func New(ctx context.Context) (*Service, error) {
	client, err := s3client.GetClient()
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	s := &Service{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  config.Cfg.S3.Bucket,
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	_, err = s.client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("storage: create bucket %s: %w", s.bucket, err)
	}
	logger.Info("storage: created bucket %s", s.bucket)
	return nil
}

// Put stores the file under the document id with its original filename and
// the upload time carried as object metadata.
func (s *Service) Put(ctx context.Context, id string, data []byte, contentType, filename string) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(id),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			metaFilename:   filename,
			metaUploadDate: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", id, err)
	}
	return nil
}

// Get returns the stored bytes together with content type and original
// filename. A missing object maps to ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) ([]byte, string, string, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, "", "", ErrNotFound
		}
		return nil, "", "", fmt.Errorf("storage: get %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", "", fmt.Errorf("storage: read %s: %w", id, err)
	}
	return data, aws.ToString(out.ContentType), out.Metadata[metaFilename], nil
}

// Head returns object metadata without the body.
func (s *Service) Head(ctx context.Context, id string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("storage: head %s: %w", id, err)
	}
	return s.objectInfo(id, out), nil
}

func (s *Service) objectInfo(id string, out *awss3.HeadObjectOutput) ObjectInfo {
	info := ObjectInfo{
		ID:          id,
		Filename:    out.Metadata[metaFilename],
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	if raw, ok := out.Metadata[metaUploadDate]; ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			info.UploadDate = t
		}
	}
	return info
}

// List enumerates every stored file with its metadata.
func (s *Service) List(ctx context.Context) ([]ObjectInfo, error) {
	infos := make([]ObjectInfo, 0, 16)
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: list bucket %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			id := aws.ToString(obj.Key)
			info, err := s.Head(ctx, id)
			if err != nil {
				logger.Warn("storage: skipping %s while listing: %v", id, err)
				continue
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Delete removes the stored file. Deleting an absent object is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return nil
}

// PresignGet returns a temporary download URL for the stored file.
func (s *Service) PresignGet(ctx context.Context, id string, expiry time.Duration) (string, error) {
	if _, err := s.Head(ctx, id); err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	}, awss3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", id, err)
	}
	return req.URL, nil
}
