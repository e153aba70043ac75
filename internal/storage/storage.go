// Package storage contains archive of submitted source code.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/udovin/duel/internal/config"
)

// ErrNotFound is returned when object does not exist.
var ErrNotFound = errors.New("object not found")

// CodeStorage represents storage of submitted code.
type CodeStorage interface {
	// Put saves data under specified key.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns data saved under specified key.
	Get(ctx context.Context, key string) ([]byte, error)
}

// SubmissionKey returns key of submission code.
func SubmissionKey(sessionID string, participantID int64, name string) string {
	return path.Join("submissions", sessionID, fmt.Sprint(participantID), name)
}

// NewCodeStorage creates storage from configuration.
func NewCodeStorage(cfg config.Storage) (CodeStorage, error) {
	switch options := cfg.Options.(type) {
	case config.LocalStorageOptions:
		return NewLocalStorage(options.FilesDir), nil
	case config.S3StorageOptions:
		secret, err := options.SecretAccessKey.Secret()
		if err != nil {
			return nil, err
		}
		return NewS3Storage(options, secret), nil
	default:
		return nil, fmt.Errorf("unsupported storage options %T", options)
	}
}

type localStorage struct {
	dir string
}

// NewLocalStorage returns storage in local directory.
func NewLocalStorage(dir string) CodeStorage {
	return &localStorage{dir: dir}
}

func (s *localStorage) systemPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (s *localStorage) Put(ctx context.Context, key string, data []byte) error {
	systemPath, err := s.systemPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(systemPath), 0777); err != nil {
		return err
	}
	tmpPath := systemPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, systemPath)
}

func (s *localStorage) Get(ctx context.Context, key string) ([]byte, error) {
	systemPath, err := s.systemPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(systemPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

type s3Storage struct {
	client     *s3.Client
	bucket     string
	pathPrefix string
}

// NewS3Storage returns storage in S3 compatible bucket.
func NewS3Storage(options config.S3StorageOptions, secret string) CodeStorage {
	s3Options := s3.Options{
		Region: options.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			options.AccessKeyID, secret, "",
		),
		UsePathStyle: options.UsePathStyle,
	}
	if options.Endpoint != "" {
		s3Options.EndpointResolver = s3.EndpointResolverFromURL(options.Endpoint)
	}
	return &s3Storage{
		client:     s3.New(s3Options),
		bucket:     options.Bucket,
		pathPrefix: options.PathPrefix,
	}
}

func (s *s3Storage) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path.Join(s.pathPrefix, key)),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *s3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path.Join(s.pathPrefix, key)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = object.Body.Close() }()
	return io.ReadAll(object.Body)
}
