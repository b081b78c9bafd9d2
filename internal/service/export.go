package service

import (
	"context"
	"io/ioutil"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/m-mizutani/weblogparser/internal/adaptor"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

const (
	parquetRowGroupSize = 16 * 1024 * 1024 // 16M
	parquetParallel     = 4
)

// ExportService writes log entries into a parquet file for analytics engines.
type ExportService struct {
	repo  repository.Repository
	newS3 adaptor.S3ClientFactory
}

// NewExportService is constructor of ExportService. newS3 is used only when
// destination is s3:// URL.
func NewExportService(repo repository.Repository, newS3 adaptor.S3ClientFactory) *ExportService {
	if newS3 == nil {
		newS3 = adaptor.NewS3Client
	}
	return &ExportService{repo: repo, newS3: newS3}
}

// Export writes entries matched with filter to dst (local path or s3:// URL)
// and returns number of exported entries.
func (x *ExportService) Export(ctx context.Context, filter *repository.EntryFilter, dst, region string) (int64, error) {
	if !models.IsS3URL(dst) {
		return x.writeParquet(ctx, filter, dst)
	}

	obj, err := models.ParseS3URL(dst)
	if err != nil {
		return 0, err
	}

	fd, err := ioutil.TempFile("", "*.parquet")
	if err != nil {
		return 0, errors.Wrap(err, "Failed to create a temp parquet file")
	}
	fd.Close()
	defer os.Remove(fd.Name())

	n, err := x.writeParquet(ctx, filter, fd.Name())
	if err != nil {
		return 0, err
	}

	body, err := os.Open(fd.Name())
	if err != nil {
		return 0, errors.Wrap(err, "Failed to open exported parquet file")
	}
	defer body.Close()

	if _, err := x.newS3(region).PutObject(&s3.PutObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
		Body:   body,
	}); err != nil {
		return 0, errors.Wrapf(err, "Failed to upload parquet file: %s", dst)
	}

	logger.WithFields(logrus.Fields{
		"dst":     dst,
		"entries": n,
	}).Info("Uploaded parquet file")

	return n, nil
}

func (x *ExportService) writeParquet(ctx context.Context, filter *repository.EntryFilter, path string) (int64, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to create a parquet file: %s", path)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(models.EntryRecord), parquetParallel)
	if err != nil {
		return 0, errors.Wrap(err, "Failed to create parquet writer")
	}
	pw.RowGroupSize = parquetRowGroupSize
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	var count int64
	if err := x.repo.ScanEntries(ctx, filter, func(entry *models.LogEntry) error {
		if err := pw.Write(*models.NewEntryRecord(entry)); err != nil {
			return errors.Wrap(err, "Failed to write entry to parquet")
		}
		count++
		return nil
	}); err != nil {
		pw.WriteStop()
		return 0, err
	}

	if err := pw.WriteStop(); err != nil {
		return 0, errors.Wrap(err, "Failed to WriteStop for EntryRecord")
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"entries": count,
	}).Debug("Wrote parquet file")

	return count, nil
}

// ReadParquet reads EntryRecord rows of a local parquet file.
func ReadParquet(path string, callback func(rec *models.EntryRecord) error) error {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to open: %s", path)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(models.EntryRecord), 1)
	if err != nil {
		return errors.Wrap(err, "Failed to create parquet reader")
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	for i := 0; i < num; i++ {
		records := make([]models.EntryRecord, 1)
		if err := pr.Read(&records); err != nil {
			return errors.Wrap(err, "Failed to read parquet record")
		}
		if err := callback(&records[0]); err != nil {
			return err
		}
	}

	return nil
}
