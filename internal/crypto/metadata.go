// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"encoding/binary"
	"fmt"
)

// objectMetadata is the encryption_metadata record for a content-store
// object: key version (4 bytes) + nonce (12 bytes) + the object's own
// DEK, wrapped under the repository DEK of that version (spec.md
// §4.G's storage layout).
type objectMetadata struct {
	Version        uint32
	Nonce          []byte
	WrappedObjectDEK []byte
}

func encodeObjectMetadata(m objectMetadata) []byte {
	b := make([]byte, 4+nonceSize+len(m.WrappedObjectDEK))
	binary.BigEndian.PutUint32(b, m.Version)
	copy(b[4:], m.Nonce)
	copy(b[4+nonceSize:], m.WrappedObjectDEK)
	return b
}

func decodeObjectMetadata(b []byte) (objectMetadata, error) {
	if len(b) < 4+nonceSize {
		return objectMetadata{}, fmt.Errorf("crypto: truncated object metadata")
	}
	return objectMetadata{
		Version:          binary.BigEndian.Uint32(b[:4]),
		Nonce:            b[4 : 4+nonceSize],
		WrappedObjectDEK: b[4+nonceSize:],
	}, nil
}

// refMetadata is the encryption_metadata record for a ref/rev mapping:
// key version (4 bytes) + nonce (12 bytes), with no inner DEK since the
// value it guards is sealed directly under the repository DEK.
type refMetadata struct {
	Version uint32
	Nonce   []byte
}

func encodeRefMetadata(m refMetadata) []byte {
	b := make([]byte, 4+nonceSize)
	binary.BigEndian.PutUint32(b, m.Version)
	copy(b[4:], m.Nonce)
	return b
}

func decodeRefMetadata(b []byte) (refMetadata, error) {
	if len(b) != 4+nonceSize {
		return refMetadata{}, fmt.Errorf("crypto: malformed ref metadata")
	}
	return refMetadata{Version: binary.BigEndian.Uint32(b[:4]), Nonce: b[4:]}, nil
}

func metadataObjectKey(project, repo, hexHash string) []byte {
	return []byte(fmt.Sprintf("%s/%s/objs/%s", project, repo, hexHash))
}

func metadataHeadKey(project, repo string) []byte {
	return []byte(fmt.Sprintf("%s/%s/HEAD", project, repo))
}

func metadataRefKey(project, repo, name string) []byte {
	return []byte(fmt.Sprintf("%s/%s/refs/%s", project, repo, name))
}

func metadataRevKey(project, repo string, rev uint32) []byte {
	return []byte(fmt.Sprintf("%s/%s/rev2sha/%d", project, repo, rev))
}

func metadataPrefix(project, repo string) []byte {
	return []byte(fmt.Sprintf("%s/%s/", project, repo))
}
