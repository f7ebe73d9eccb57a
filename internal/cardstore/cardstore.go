// Package cardstore persists exported cards to S3-compatible object
// storage. Each card occupies a prefix holding the generated code and the
// blueprint JSON; sharing links are presigned GETs.
package cardstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"dreamcard/internal/blueprint"
	t "dreamcard/internal/types"
	"dreamcard/internal/util/jsonx"
)

var ErrNotFound = errors.New("cardstore: not found")

const (
	codeObject      = "App.tsx"
	blueprintObject = "blueprint.json"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Store struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

func New(cfg Config) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("cardstore: endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("cardstore: access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("cardstore: bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("cardstore: init client: %w", err)
	}
	return &Store{client: client, bucket: bucket, region: region}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("cardstore: store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Export writes the artifact's code and blueprint under the card's prefix.
func (s *Store) Export(ctx context.Context, cardID t.CardID, artifact t.BuildArtifact) error {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return fmt.Errorf("cardstore: card id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("cardstore: ensure bucket: %w", err)
	}

	bpJSON, err := jsonx.MarshalNoEscape(artifact.Blueprint)
	if err != nil {
		return fmt.Errorf("cardstore: encode blueprint: %w", err)
	}

	if err := s.put(ctx, objectKey(cardID, codeObject), []byte(artifact.Code), "text/plain"); err != nil {
		return err
	}
	return s.put(ctx, objectKey(cardID, blueprintObject), bpJSON, "application/json")
}

func (s *Store) put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Code fetches the exported code for a card.
func (s *Store) Code(ctx context.Context, cardID t.CardID) (string, error) {
	data, err := s.get(ctx, objectKey(strings.TrimSpace(cardID), codeObject))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Blueprint fetches and decodes the exported blueprint for a card.
func (s *Store) Blueprint(ctx context.Context, cardID t.CardID) (blueprint.Blueprint, error) {
	data, err := s.get(ctx, objectKey(strings.TrimSpace(cardID), blueprintObject))
	if err != nil {
		return blueprint.Blueprint{}, err
	}
	var bp blueprint.Blueprint
	if err := jsonx.Unmarshal(data, &bp); err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("cardstore: decode blueprint: %w", err)
	}
	return bp, nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("cardstore: ensure bucket: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// ShareURL returns a presigned GET link to the exported code.
func (s *Store) ShareURL(ctx context.Context, cardID t.CardID, expiry time.Duration) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("cardstore: store is nil")
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket,
		objectKey(strings.TrimSpace(cardID), codeObject), expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func objectKey(cardID t.CardID, name string) string {
	return "cards/" + cardID + "/" + name
}
