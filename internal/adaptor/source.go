package adaptor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/pkg/errors"
)

// Source is location of log files: local directory or S3 prefix.
type Source interface {
	// ListFiles returns paths of regular files directly under base whose base
	// name matches pattern, in lexical order.
	ListFiles(ctx context.Context, base string, pattern *regexp.Regexp) ([]string, error)
	// Open returns reader of the log file. ".gz" file is decompressed.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Resolve normalizes a file path and returns it with its directory and base name.
	Resolve(path string) (resolved, dir, name string, err error)
	// Exists returns false if no file is found at the path.
	Exists(ctx context.Context, path string) (bool, error)
}

// NewSource returns S3Source for s3:// target and LocalSource for others.
func NewSource(target, region string, newS3 S3ClientFactory) Source {
	if models.IsS3URL(target) {
		if newS3 == nil {
			newS3 = NewS3Client
		}
		return &S3Source{client: newS3(region)}
	}
	return &LocalSource{}
}

// IsGzip returns true if the file should be decompressed.
func IsGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.ReadCloser
}

func (x *gzipReadCloser) Close() error {
	if err := x.Reader.Close(); err != nil {
		x.body.Close()
		return errors.Wrap(err, "Failed to close gzip reader")
	}
	return x.body.Close()
}

func wrapReader(path string, body io.ReadCloser) (io.ReadCloser, error) {
	if !IsGzip(path) {
		return body, nil
	}

	gr, err := gzip.NewReader(body)
	if err != nil {
		body.Close()
		return nil, errors.Wrapf(err, "Failed to open gzip stream: %s", path)
	}
	return &gzipReadCloser{Reader: gr, body: body}, nil
}

// LocalSource reads log files on local file system.
type LocalSource struct{}

func (x *LocalSource) ListFiles(ctx context.Context, base string, pattern *regexp.Regexp) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read directory: %s", base)
	}

	var files []string
	for _, entry := range entries {
		if pattern != nil && !pattern.MatchString(entry.Name()) {
			continue
		}

		path := filepath.Join(base, entry.Name())
		// Stat follows symbolic links
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "Failed to stat file: %s", path)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}

	sort.Strings(files)
	return files, nil
}

func (x *LocalSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open log file: %s", path)
	}
	return wrapReader(path, fd)
}

func (x *LocalSource) Resolve(path string) (string, string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", "", errors.Wrapf(err, "Failed to get absolute path: %s", path)
	}
	return abs, filepath.Dir(abs), filepath.Base(abs), nil
}

func (x *LocalSource) Exists(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "Failed to stat: %s", path)
	}
	return info.Mode().IsRegular(), nil
}

// S3Source reads log files stored in S3 bucket.
type S3Source struct {
	client S3Client
}

// NewS3Source is constructor of S3Source
func NewS3Source(client S3Client) *S3Source {
	return &S3Source{client: client}
}

func (x *S3Source) ListFiles(ctx context.Context, base string, pattern *regexp.Regexp) ([]string, error) {
	dir, err := models.ParseS3URL(base)
	if err != nil {
		return nil, err
	}

	prefix := dir.Key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var files []string
	var token *string
	for {
		output, err := x.client.ListObjectsV2(&s3.ListObjectsV2Input{
			Bucket:            aws.String(dir.Bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to list objects: %s", base)
		}

		for _, obj := range output.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			if pattern != nil && !pattern.MatchString(name) {
				continue
			}
			files = append(files, (&models.S3Object{Bucket: dir.Bucket, Key: prefix + name}).URL())
		}

		if !aws.BoolValue(output.IsTruncated) || output.NextContinuationToken == nil {
			break
		}
		token = output.NextContinuationToken

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func (x *S3Source) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := models.ParseS3URL(path)
	if err != nil {
		return nil, err
	}

	output, err := x.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to get object: %s", path)
	}

	return wrapReader(path, output.Body)
}

func (x *S3Source) Resolve(path string) (string, string, string, error) {
	obj, err := models.ParseS3URL(path)
	if err != nil {
		return "", "", "", err
	}
	if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
		return "", "", "", errors.Errorf("S3 URL has no object name: %s", path)
	}

	idx := strings.LastIndex(obj.Key, "/")
	dir := models.S3Object{Bucket: obj.Bucket}
	if idx > 0 {
		dir.Key = obj.Key[:idx]
	}
	return obj.URL(), strings.TrimSuffix(dir.URL(), "/"), obj.Key[idx+1:], nil
}

func (x *S3Source) Exists(ctx context.Context, path string) (bool, error) {
	obj, err := models.ParseS3URL(path)
	if err != nil {
		return false, err
	}

	if _, err := x.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	}); err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
			return false, nil
		}
		return false, errors.Wrapf(err, "Failed to head object: %s", path)
	}
	return true, nil
}
