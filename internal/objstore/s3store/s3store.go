// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package s3store is an S3-backed implementation of the object store
// (spec.md §4.A), letting a deployment keep every repository's objects
// in S3 rather than on local disk.
// It follows the "stat before push, object-key fan-out by repository"
// shape of pkg/serve/odb/oss.go in the teacher tree (ossJoin,
// WriteDirect, Push), but talks to S3 directly through
// aws-sdk-go-v2/service/s3 rather than the teacher's hand-rolled
// Aliyun-OSS HTTP client: the S3 SDK is the dependency SPEC_FULL.md's
// domain stack commits to, and the teacher's go.mod already carries
// it (unexercised by the teacher's own source — see DESIGN.md).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/antgroup/lineage/internal/hash"
	"github.com/antgroup/lineage/internal/object"
	"github.com/antgroup/lineage/internal/objstore"
)

// Client is the subset of *s3.Client this package calls, so tests can
// substitute a fake.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Store puts/gets objects under a per-repository key prefix in an S3
// bucket.
type Store struct {
	client     Client
	bucket     string
	repository string
}

func New(client Client, bucket, repository string) *Store {
	return &Store{client: client, bucket: bucket, repository: repository}
}

func (s *Store) key(h hash.Hash) string {
	hex := h.String()
	return fmt.Sprintf("repos/%s/objects/%s/%s", s.repository, hex[:2], hex[2:])
}

func (s *Store) Put(ctx context.Context, kind object.Kind, content []byte) (hash.Hash, error) {
	h := hash.Of(content)
	key := s.key(h)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err == nil {
		return h, nil
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/octet-stream"),
		Metadata:    map[string]string{"object-kind": kind.String()},
	})
	if err != nil {
		return hash.Zero, fmt.Errorf("s3store: put %s: %w", key, err)
	}
	return h, nil
}

func (s *Store) Get(ctx context.Context, h hash.Hash) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(h))})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, objstore.ErrNotFound
		}
		return nil, fmt.Errorf("s3store: get %s: %w", h, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *Store) Exists(ctx context.Context, h hash.Hash) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(h))})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("s3store: head %s: %w", h, err)
}

var _ objstore.Store = (*Store)(nil)
