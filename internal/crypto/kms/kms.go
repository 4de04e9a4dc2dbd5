// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package kms wraps and unwraps 256-bit keys through an external key
// management service, the outermost layer of the key hierarchy
// internal/crypto builds its envelope encryption on (spec.md §4.G).
package kms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KeyManager wraps and unwraps short plaintext keys (DEKs, session
// master keys) under a key-encryption key identified by kekID. The
// service is assumed to do its own integrity checking; callers never
// see or choose the wrapping algorithm.
type KeyManager interface {
	Wrap(ctx context.Context, kekID string, plaintext []byte) ([]byte, error)
	Unwrap(ctx context.Context, kekID string, wrapped []byte) ([]byte, error)
}

// Client is a KeyManager backed by AWS KMS's own Encrypt/Decrypt API,
// which is already a correct envelope wrap/unwrap for payloads this
// small (DEKs and session keys are 32 bytes, far under KMS's 4KiB
// direct-encryption limit), so no additional AEAD layer is needed here
// beyond what KMS itself provides.
type Client struct {
	api *kms.Client
}

// New builds a Client from the ambient AWS configuration (environment,
// shared config file, or instance role), the way the rest of this
// system's storage clients are expected to be configured.
func New(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("kms: load aws config: %w", err)
	}
	return &Client{api: kms.NewFromConfig(cfg)}, nil
}

// NewFromAPI builds a Client around an already-configured KMS API
// handle, letting tests and alternate deployments (e.g. a local KMS
// emulator) substitute their own endpoint resolver.
func NewFromAPI(api *kms.Client) *Client {
	return &Client{api: api}
}

func (c *Client) Wrap(ctx context.Context, kekID string, plaintext []byte) ([]byte, error) {
	out, err := c.api.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(kekID),
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("kms: encrypt under %s: %w", kekID, err)
	}
	return out.CiphertextBlob, nil
}

func (c *Client) Unwrap(ctx context.Context, kekID string, wrapped []byte) ([]byte, error) {
	out, err := c.api.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(kekID),
		CiphertextBlob: wrapped,
	})
	if err != nil {
		return nil, fmt.Errorf("kms: decrypt under %s: %w", kekID, err)
	}
	return out.Plaintext, nil
}

var _ KeyManager = (*Client)(nil)
