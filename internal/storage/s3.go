package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config encapsulates the connection info for AWS S3 or an S3-compatible endpoint.
type S3Config struct {
	Bucket    string
	Region    string
	Profile   string
	AccessKey string
	SecretKey string
	Endpoint  string
	PathStyle bool
}

// s3API is the subset of *s3.Client the mirror uses.
type s3API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// S3Client implements ObjectStorage on top of aws-sdk-go-v2.
type S3Client struct {
	api        s3API
	bucket     string
	downloader *manager.Downloader
}

// NewS3Client loads AWS configuration (static keys win over the named profile)
// and builds a client bound to cfg.Bucket.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	} else if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newS3Client(client, cfg.Bucket), nil
}

func newS3Client(api s3API, bucket string) *S3Client {
	return &S3Client{
		api:        api,
		bucket:     bucket,
		downloader: manager.NewDownloader(api),
	}
}

// ListObjects lists all objects for a given prefix.
func (c *S3Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	results := make([]ObjectInfo, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, object := range page.Contents {
			results = append(results, ObjectInfo{
				Key:  aws.ToString(object.Key),
				Size: aws.ToInt64(object.Size),
			})
		}
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
// The file only appears at destPath once the transfer completed.
func (c *S3Client) DownloadObject(ctx context.Context, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed creating temp file for %s: %w", destPath, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = c.downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("s3 download of %s failed: %w", key, err)
	}

	if err := os.Rename(tmpName, destPath); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

// IsDirectoryMarker reports zero-byte keys that only stand for a folder.
func IsDirectoryMarker(obj ObjectInfo) bool {
	return strings.HasSuffix(obj.Key, "/")
}

var _ ObjectStorage = (*S3Client)(nil)
