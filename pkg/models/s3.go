package models

import (
	"strings"

	"github.com/pkg/errors"
)

const s3Scheme = "s3://"

// S3Object is location of an object or a prefix on S3
type S3Object struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// IsS3URL returns true if path has s3:// scheme.
func IsS3URL(path string) bool {
	return strings.HasPrefix(path, s3Scheme)
}

// ParseS3URL parses s3://{bucket}/{key} format.
func ParseS3URL(url string) (*S3Object, error) {
	if !IsS3URL(url) {
		return nil, errors.Errorf("Invalid S3 URL (s3:// is required): %s", url)
	}

	body := url[len(s3Scheme):]
	parts := strings.SplitN(body, "/", 2)
	if parts[0] == "" {
		return nil, errors.Errorf("Invalid S3 URL (no bucket): %s", url)
	}

	obj := &S3Object{Bucket: parts[0]}
	if len(parts) == 2 {
		obj.Key = parts[1]
	}
	return obj, nil
}

// AppendKey joins a name to Key as a child of the prefix.
func (x *S3Object) AppendKey(append string) {
	if x.Key == "" || strings.HasSuffix(x.Key, "/") {
		x.Key += append
	} else {
		x.Key += "/" + append
	}
}

// URL returns s3://{bucket}/{key}
func (x *S3Object) URL() string {
	return s3Scheme + x.Bucket + "/" + x.Key
}
