package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/courseshare/courseshare-backend/pkg/config"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/storage"
)

// Client stores ride documents and chat attachments in a GCS bucket.
type Client struct {
	client *gcstorage.Client
	bucket string
}

var _ storage.FileStore = (*Client)(nil)

// ClientOptions resolves the credential options from config, falling back to
// Application Default Credentials.
func ClientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case gcp.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case gcp.ApplicationCredentials != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	opts = append(ClientOptions(gcp), opts...)
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client ready")
	}
	return &Client{client: client, bucket: cfg.BucketName}, nil
}

func (c *Client) object(key string) *gcstorage.ObjectHandle {
	return c.client.Bucket(c.bucket).Object(key)
}

func (c *Client) Put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	writer := c.object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("gcs finalize %s: %w", key, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := c.object(key).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	return reader, nil
}

// Delete treats an already-missing object as deleted.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.object(key).Delete(ctx)
	if err == nil || errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil
	}
	return fmt.Errorf("gcs delete %s: %w", key, err)
}

// Ping verifies the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.Bucket(c.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket attrs: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
