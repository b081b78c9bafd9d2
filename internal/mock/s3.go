package mock

import (
	"bytes"
	"io/ioutil"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/m-mizutani/weblogparser/internal/adaptor"
)

// NewS3ClientFactory returns factory that always provides the client.
func NewS3ClientFactory(client *S3Client) adaptor.S3ClientFactory {
	return func(region string) adaptor.S3Client { return client }
}

// NewS3Client is constructor of on memory S3 mock
func NewS3Client() *S3Client {
	return &S3Client{
		data: map[string]map[string][]byte{},
	}
}

// S3Client is on memory S3Client mock
type S3Client struct {
	// PageSize limits number of keys in ListObjectsV2 output. Zero means no limit.
	PageSize int

	data  map[string]map[string][]byte
	mutex sync.Mutex
}

func noSuchKey(bucket, key string) error {
	return awserr.New(s3.ErrCodeNoSuchKey, "s3://"+bucket+"/"+key, nil)
}

func (x *S3Client) lookup(bucket, key *string) ([]byte, bool) {
	b, ok := x.data[aws.StringValue(bucket)]
	if !ok {
		return nil, false
	}
	obj, ok := b[aws.StringValue(key)]
	return obj, ok
}

// Put saves object data directly.
func (x *S3Client) Put(bucket, key string, data []byte) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	b, ok := x.data[bucket]
	if !ok {
		b = map[string][]byte{}
		x.data[bucket] = b
	}
	b[key] = data
}

// Get returns object data directly.
func (x *S3Client) Get(bucket, key string) ([]byte, bool) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.lookup(&bucket, &key)
}

// GetObject of S3Client loads []bytes from memory
func (x *S3Client) GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	obj, ok := x.lookup(input.Bucket, input.Key)
	if !ok {
		return nil, noSuchKey(aws.StringValue(input.Bucket), aws.StringValue(input.Key))
	}

	return &s3.GetObjectOutput{
		Body:          ioutil.NopCloser(bytes.NewReader(obj)),
		ContentLength: aws.Int64(int64(len(obj))),
	}, nil
}

// HeadObject of S3Client checks existence of object
func (x *S3Client) HeadObject(input *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	obj, ok := x.lookup(input.Bucket, input.Key)
	if !ok {
		return nil, awserr.New("NotFound", "Not Found", nil)
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(obj)))}, nil
}

// PutObject of S3Client saves []bytes to memory
func (x *S3Client) PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	raw, err := ioutil.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	x.Put(aws.StringValue(input.Bucket), aws.StringValue(input.Key), raw)
	return &s3.PutObjectOutput{}, nil
}

// ListObjectsV2 of S3Client returns keys under the prefix in lexical order.
// Delimiter is supported only as "/".
func (x *S3Client) ListObjectsV2(input *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	prefix := aws.StringValue(input.Prefix)
	delimiter := aws.StringValue(input.Delimiter)
	start := aws.StringValue(input.ContinuationToken)

	var keys []string
	for key := range x.data[aws.StringValue(input.Bucket)] {
		if !strings.HasPrefix(key, prefix) || key <= start {
			continue
		}
		if delimiter != "" && strings.Contains(key[len(prefix):], delimiter) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	output := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if x.PageSize > 0 && len(keys) > x.PageSize {
		keys = keys[:x.PageSize]
		output.IsTruncated = aws.Bool(true)
		output.NextContinuationToken = aws.String(keys[len(keys)-1])
	}

	for _, key := range keys {
		obj := x.data[aws.StringValue(input.Bucket)][key]
		output.Contents = append(output.Contents, &s3.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(obj))),
		})
	}

	return output, nil
}
