// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/lineage/internal/crypto/kvstore"
	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/hash"
)

// fakeKEK is an in-memory stand-in for an external KMS: it "wraps" a
// key by prefixing it with the KEK id and a colon so tests can assert unwrap recovers
// exactly the bytes that were wrapped, without needing real AWS
// credentials.
type fakeKEK struct{ tag string }

func (f *fakeKEK) Wrap(_ context.Context, kekID string, plaintext []byte) ([]byte, error) {
	out := make([]byte, 0, len(kekID)+1+len(plaintext))
	out = append(out, []byte(kekID)...)
	out = append(out, ':')
	out = append(out, plaintext...)
	return out, nil
}

func (f *fakeKEK) Unwrap(_ context.Context, kekID string, wrapped []byte) ([]byte, error) {
	prefix := kekID + ":"
	return wrapped[len(prefix):], nil
}

func newTestSubstrate(t *testing.T) *Substrate {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return New(kv, &fakeKEK{}, "test-kek")
}

func TestStoreWDEKThenGetCurrentDEKRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)

	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo", 1))

	dek, err := s.GetCurrentDEK(ctx, "proj", "repo")
	require.NoError(t, err)
	require.Len(t, dek, dekKeySize)
}

func TestStoreWDEKRejectsDuplicateVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)

	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo", 1))
	err := s.StoreWDEK(ctx, "proj", "repo", 1)
	require.ErrorIs(t, err, dogmaerr.ErrEntryExists)
}

func TestGetCurrentDEKWithoutStoreIsEntryAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)

	_, err := s.GetCurrentDEK(ctx, "proj", "repo")
	require.ErrorIs(t, err, dogmaerr.ErrEntryAbsent)
}

func TestRemoveWDEKThenGetDEKIsEntryAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)

	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo", 1))
	require.NoError(t, s.RemoveWDEK("proj", "repo", 1))

	_, err := s.GetDEK(ctx, "proj", "repo", 1)
	require.ErrorIs(t, err, dogmaerr.ErrEntryAbsent)
}

func TestPutObjectThenGetObjectRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)
	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo", 1))

	content := []byte("hello, encrypted world\n")
	h := hash.Of(content)
	require.NoError(t, s.PutObject(ctx, "proj", "repo", h, content))

	got, err := s.GetObject(ctx, "proj", "repo", h)
	require.NoError(t, err)
	require.Equal(t, content, got)

	ok, err := s.ContainsMetadata("proj", "repo", h)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetObjectWithoutPutIsEntryAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)
	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo", 1))

	_, err := s.GetObject(ctx, "proj", "repo", hash.Of([]byte("nope")))
	require.ErrorIs(t, err, dogmaerr.ErrEntryAbsent)
}

func TestPutObjectIDRoundTripsForAllRefKinds(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)
	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo", 1))

	headHash := hash.Of([]byte("head-commit"))
	refHash := hash.Of([]byte("branch-commit"))
	revHash := hash.Of([]byte("rev-5-commit"))

	require.NoError(t, s.PutObjectID(ctx, "proj", "repo", headRef(), headHash))
	require.NoError(t, s.PutObjectID(ctx, "proj", "repo", nameRef("main"), refHash))
	require.NoError(t, s.PutObjectID(ctx, "proj", "repo", revRef(5), revHash))

	got, err := s.GetObjectID(ctx, "proj", "repo", headRef())
	require.NoError(t, err)
	require.Equal(t, headHash, got)

	got, err = s.GetObjectID(ctx, "proj", "repo", nameRef("main"))
	require.NoError(t, err)
	require.Equal(t, refHash, got)

	got, err = s.GetObjectID(ctx, "proj", "repo", revRef(5))
	require.NoError(t, err)
	require.Equal(t, revHash, got)
}

func TestDeleteObjectIDRemovesMapping(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)
	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo", 1))
	require.NoError(t, s.PutObjectID(ctx, "proj", "repo", nameRef("main"), hash.Of([]byte("x"))))

	require.NoError(t, s.DeleteObjectID(ctx, "proj", "repo", nameRef("main")))

	_, err := s.GetObjectID(ctx, "proj", "repo", nameRef("main"))
	require.ErrorIs(t, err, dogmaerr.ErrEntryAbsent)
}

func TestDeleteObjectIDOnAbsentEntryIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)
	require.NoError(t, s.DeleteObjectID(ctx, "proj", "repo", nameRef("ghost")))
}

func TestDeleteRepositoryDataRemovesObjectsRefsAndWDEKs(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)
	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo", 1))

	content := []byte("payload")
	h := hash.Of(content)
	require.NoError(t, s.PutObject(ctx, "proj", "repo", h, content))
	require.NoError(t, s.PutObjectID(ctx, "proj", "repo", headRef(), h))
	require.NoError(t, s.PutObjectID(ctx, "proj", "repo", revRef(1), h))

	require.NoError(t, s.DeleteRepositoryData("proj", "repo"))

	_, err := s.GetObject(ctx, "proj", "repo", h)
	require.ErrorIs(t, err, dogmaerr.ErrEntryAbsent)

	_, err = s.GetObjectID(ctx, "proj", "repo", headRef())
	require.ErrorIs(t, err, dogmaerr.ErrEntryAbsent)

	_, err = s.GetCurrentDEK(ctx, "proj", "repo")
	require.ErrorIs(t, err, dogmaerr.ErrEntryAbsent)
}

func TestDeleteRepositoryDataLeavesOtherRepositoriesUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)
	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo-a", 1))
	require.NoError(t, s.StoreWDEK(ctx, "proj", "repo-b", 1))

	content := []byte("payload")
	h := hash.Of(content)
	require.NoError(t, s.PutObject(ctx, "proj", "repo-a", h, content))
	require.NoError(t, s.PutObject(ctx, "proj", "repo-b", h, content))

	require.NoError(t, s.DeleteRepositoryData("proj", "repo-a"))

	_, err := s.GetObject(ctx, "proj", "repo-a", h)
	require.ErrorIs(t, err, dogmaerr.ErrEntryAbsent)

	got, err := s.GetObject(ctx, "proj", "repo-b", h)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestStoreSessionMasterKeyThenGetCurrentSessionKeyRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestSubstrate(t)

	key := []byte("0123456789abcdef0123456789abcdef")[:32]
	salt := []byte("pepper")
	require.NoError(t, s.StoreSessionMasterKey(ctx, 1, key, salt))

	gotKey, gotSalt, err := s.GetCurrentSessionKey(ctx)
	require.NoError(t, err)
	require.Equal(t, key, gotKey)
	require.Equal(t, salt, gotSalt)
}
