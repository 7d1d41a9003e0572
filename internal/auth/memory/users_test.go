// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	"github.com/holomush/warden/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func addUser(t *testing.T, dir *memory.UserDirectory, email string) *auth.User {
	t.Helper()
	u, err := auth.NewUser(email, "$argon2id$hash")
	require.NoError(t, err)
	added, err := dir.AddUser(context.Background(), u)
	require.NoError(t, err)
	return added
}

func TestUserDirectory_AddAndFind(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewUserDirectory()
	added := addUser(t, dir, "bob@example.com")

	t.Run("find by email", func(t *testing.T) {
		got, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldEmail, "bob@example.com"))
		require.NoError(t, err)
		assert.Equal(t, added.ID, got.ID)
	})

	t.Run("find by id string", func(t *testing.T) {
		got, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldID, added.ID.String()))
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", got.Email)
	})

	t.Run("find by id value", func(t *testing.T) {
		got, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldID, added.ID))
		require.NoError(t, err)
		assert.Equal(t, added.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldEmail, "nobody@example.com"))
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := dir.FindUserBy(ctx, auth.Eq("nickname", "bob"))
		require.ErrorIs(t, err, auth.ErrUnknownField)
		errutil.AssertErrorCode(t, err, "FIELD_UNKNOWN")
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup, err := auth.NewUser("bob@example.com", "$argon2id$other")
		require.NoError(t, err)
		_, err = dir.AddUser(ctx, dup)
		require.ErrorIs(t, err, auth.ErrAlreadyExists)
	})

	t.Run("returned user is a copy", func(t *testing.T) {
		got, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldEmail, "bob@example.com"))
		require.NoError(t, err)
		got.Email = "mutated@example.com"

		again, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldID, added.ID))
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", again.Email)
	})
}

func TestUserDirectory_FindMultiple(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewUserDirectory()
	a := addUser(t, dir, "a@example.com")
	b := addUser(t, dir, "b@example.com")

	require.NoError(t, dir.UpdateUser(ctx, a.ID, auth.Eq(auth.FieldSessionID, "same")))
	require.NoError(t, dir.UpdateUser(ctx, b.ID, auth.Eq(auth.FieldSessionID, "same")))

	_, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldSessionID, "same"))
	require.ErrorIs(t, err, auth.ErrMultipleResults)
}

func TestUserDirectory_UpdateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("sets and clears nullable columns", func(t *testing.T) {
		dir := memory.NewUserDirectory()
		u := addUser(t, dir, "carol@example.com")

		require.NoError(t, dir.UpdateUser(ctx, u.ID, auth.Eq(auth.FieldResetToken, "tokenhash")))
		got, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldResetToken, "tokenhash"))
		require.NoError(t, err)
		require.NotNil(t, got.ResetToken)
		assert.Equal(t, "tokenhash", *got.ResetToken)

		require.NoError(t, dir.UpdateUser(ctx, u.ID, auth.Eq(auth.FieldResetToken, nil)))
		got, err = dir.FindUserBy(ctx, auth.Eq(auth.FieldID, u.ID))
		require.NoError(t, err)
		assert.Nil(t, got.ResetToken)

		_, err = dir.FindUserBy(ctx, auth.Eq(auth.FieldResetToken, "tokenhash"))
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("nil filter matches cleared column", func(t *testing.T) {
		dir := memory.NewUserDirectory()
		u := addUser(t, dir, "dan@example.com")

		got, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldSessionID, nil))
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		dir := memory.NewUserDirectory()
		err := dir.UpdateUser(ctx, ulid.Make(), auth.Eq(auth.FieldSessionID, "x"))
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("unknown field leaves user untouched", func(t *testing.T) {
		dir := memory.NewUserDirectory()
		u := addUser(t, dir, "erin@example.com")

		err := dir.UpdateUser(ctx, u.ID,
			auth.Eq(auth.FieldSessionID, "x"),
			auth.Eq("favourite_colour", "blue"),
		)
		require.ErrorIs(t, err, auth.ErrUnknownField)

		got, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldID, u.ID))
		require.NoError(t, err)
		assert.Nil(t, got.SessionID)
	})

	t.Run("id is immutable", func(t *testing.T) {
		dir := memory.NewUserDirectory()
		u := addUser(t, dir, "fay@example.com")

		err := dir.UpdateUser(ctx, u.ID, auth.Eq(auth.FieldID, ulid.Make()))
		require.ErrorIs(t, err, auth.ErrUnknownField)
		errutil.AssertErrorCode(t, err, "FIELD_IMMUTABLE")
	})

	t.Run("email collision", func(t *testing.T) {
		dir := memory.NewUserDirectory()
		addUser(t, dir, "gus@example.com")
		u := addUser(t, dir, "hal@example.com")

		err := dir.UpdateUser(ctx, u.ID, auth.Eq(auth.FieldEmail, "gus@example.com"))
		require.ErrorIs(t, err, auth.ErrAlreadyExists)
	})

	t.Run("hashed password cannot be cleared", func(t *testing.T) {
		dir := memory.NewUserDirectory()
		u := addUser(t, dir, "ivy@example.com")

		err := dir.UpdateUser(ctx, u.ID, auth.Eq(auth.FieldHashedPassword, nil))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "FIELD_REQUIRED")
	})
}

func TestUserDirectory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewUserDirectory()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := auth.NewUser(fmt.Sprintf("user%d@example.com", i), "$argon2id$hash")
			if err != nil {
				return
			}
			added, err := dir.AddUser(ctx, u)
			if err != nil {
				return
			}
			_ = dir.UpdateUser(ctx, added.ID, auth.Eq(auth.FieldSessionID, fmt.Sprintf("s%d", i)))
			_, _ = dir.FindUserBy(ctx, auth.Eq(auth.FieldEmail, added.Email))
		}(i)
	}
	wg.Wait()

	for i := range 50 {
		u, err := dir.FindUserBy(ctx, auth.Eq(auth.FieldEmail, fmt.Sprintf("user%d@example.com", i)))
		require.NoError(t, err)
		require.NotNil(t, u.SessionID)
		assert.Equal(t, fmt.Sprintf("s%d", i), *u.SessionID)
	}
}
