package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectSource fetches a snapshot from an S3-compatible bucket. Used when
// the snapshot pipeline publishes to object storage instead of a plain
// file server.
type ObjectSource struct {
	client *minio.Client
	bucket string
	object string
}

func NewObjectSource(endpoint, accessKey, secretKey, bucket, object string, useSSL bool) (*ObjectSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &ObjectSource{client: client, bucket: bucket, object: object}, nil
}

func (s *ObjectSource) Describe() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.object)
}

func (s *ObjectSource) Fetch(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.Describe(), err)
	}
	defer obj.Close()
	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Describe(), err)
	}
	return body, nil
}
