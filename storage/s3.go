package storage

import (
	"bytes"
	"context"
	"io/ioutil"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"github.com/tokenized/logger"
)

const s3ListLimit = int64(1000)

// S3Storage implements the Storage interface against an AWS S3 bucket, for
// durable off-host retention of the artifact trail.
type S3Storage struct {
	Config  Config
	Session *session.Session
}

func NewS3Storage(config Config) *S3Storage {
	return &S3Storage{
		Config:  config,
		Session: session.New(aws.NewConfig()),
	}
}

func (s *S3Storage) Write(ctx context.Context, key string, body []byte) error {
	svc := s3.New(s.Session)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}

	var err error
	for i := 0; i <= s.Config.MaxRetries; i++ {
		if i != 0 {
			time.Sleep(time.Duration(s.Config.RetryDelay) * time.Millisecond)
		}

		if _, err = svc.PutObject(input); err == nil {
			return nil
		}

		logger.Error(ctx, "S3CallFailed to write to %s : %s", key, err)
	}

	logger.Error(ctx, "S3CallAborted write to %s : %s", key, err)
	return errors.Wrapf(err, "key: %s", key)
}

func (s *S3Storage) Read(ctx context.Context, key string) ([]byte, error) {
	svc := s3.New(s.Session)

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(key),
	}

	var err error
	for i := 0; i <= s.Config.MaxRetries; i++ {
		if i != 0 {
			time.Sleep(time.Duration(s.Config.RetryDelay) * time.Millisecond)
		}

		var output *s3.GetObjectOutput
		output, err = svc.GetObject(input)
		if err == nil {
			defer output.Body.Close()
			return ioutil.ReadAll(output.Body)
		}

		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrNotFound
		}

		logger.Error(ctx, "S3CallFailed to read %s : %s", key, err)
	}

	logger.Error(ctx, "S3CallAborted read %s : %s", key, err)
	return nil, errors.Wrapf(err, "key: %s", key)
}

func (s *S3Storage) Remove(ctx context.Context, key string) error {
	svc := s3.New(s.Session)

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(key),
	}

	if _, err := svc.DeleteObject(input); err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return ErrNotFound
		}
		return errors.Wrapf(err, "key: %s", key)
	}

	return nil
}

func (s *S3Storage) List(ctx context.Context, path string) ([]string, error) {
	svc := s3.New(s.Session)

	keys := []string{}
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.Config.Bucket),
		Prefix:  aws.String(path),
		MaxKeys: aws.Int64(s3ListLimit),
	}

	for {
		output, err := svc.ListObjectsV2(input)
		if err != nil {
			return nil, errors.Wrapf(err, "path: %s", path)
		}

		for _, object := range output.Contents {
			keys = append(keys, aws.StringValue(object.Key))
		}

		if !aws.BoolValue(output.IsTruncated) {
			break
		}
		input.ContinuationToken = output.NextContinuationToken
	}

	return keys, nil
}
