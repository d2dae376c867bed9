// Package artifacts mirrors run artifacts (plan snapshots, diffs,
// validation logs) to an S3-compatible bucket, so a run's evidence trail
// survives beyond local disk.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/revorc/pkg/config"
)

// Store mirrors local run artifacts into an S3-compatible bucket.
type Store struct {
	api    *minio.Client
	bucket string
}

// Object describes one stored artifact.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New builds a Store from the configured artifact bucket.
func New(cfg config.S3Config) (*Store, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("artifacts: create client: %w", err)
	}
	return &Store{api: api, bucket: cfg.Bucket}, nil
}

// Key builds the canonical object key for a run's artifact.
func Key(runID, relPath string) string {
	return strings.TrimSuffix(runID, "/") + "/" + strings.TrimPrefix(relPath, "/")
}

// Put uploads data under runID/relPath.
func (s *Store) Put(ctx context.Context, runID, relPath string, data []byte, contentType string) error {
	key := Key(runID, relPath)
	reader := bytes.NewReader(data)
	_, err := s.api.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("artifacts: put %s: %w", key, err)
	}
	return nil
}

// Get downloads the artifact stored under runID/relPath.
func (s *Store) Get(ctx context.Context, runID, relPath string) ([]byte, error) {
	key := Key(runID, relPath)
	obj, err := s.api.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("artifacts: get %s: %w", key, err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("artifacts: read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// List returns every artifact stored for runID.
func (s *Store) List(ctx context.Context, runID string) ([]Object, error) {
	prefix := strings.TrimSuffix(runID, "/") + "/"
	var objs []Object
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("artifacts: list %s: %w", runID, obj.Err)
		}
		objs = append(objs, Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return objs, nil
}
