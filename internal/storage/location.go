package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// Location is a parsed s3://bucket/prefix URI.
type Location struct {
	Bucket string
	Prefix string
}

// ParseLocation parses raw, which must use the s3 scheme and name a bucket.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, fmt.Errorf("invalid remote path %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return Location{}, fmt.Errorf("invalid remote path %q: scheme must be s3", raw)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("invalid remote path %q: bucket is required", raw)
	}
	return Location{
		Bucket: u.Host,
		Prefix: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// String renders the location back into URI form.
func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Prefix
}
