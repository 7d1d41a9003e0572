// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks of the auth package interfaces.
//
// Variadic field arguments are recorded as a single []auth.Field, so
// expectations are written as:
//
//	users.On("FindUserBy", mock.Anything, []auth.Field{auth.Eq(auth.FieldEmail, "a@b.c")})
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/warden/internal/auth"
)

// MockUserDirectory is a mock of auth.UserDirectory.
type MockUserDirectory struct {
	mock.Mock
}

// NewMockUserDirectory creates a MockUserDirectory whose expectations are
// asserted when the test ends.
func NewMockUserDirectory(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockUserDirectory {
	m := &MockUserDirectory{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FindUserBy provides a mock function.
func (m *MockUserDirectory) FindUserBy(ctx context.Context, filter ...auth.Field) (*auth.User, error) {
	ret := m.Called(ctx, filter)
	var user *auth.User
	if v := ret.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, ret.Error(1)
}

// AddUser provides a mock function.
func (m *MockUserDirectory) AddUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	ret := m.Called(ctx, user)
	var added *auth.User
	if v := ret.Get(0); v != nil {
		added = v.(*auth.User)
	}
	return added, ret.Error(1)
}

// UpdateUser provides a mock function.
func (m *MockUserDirectory) UpdateUser(ctx context.Context, id ulid.ULID, fields ...auth.Field) error {
	ret := m.Called(ctx, id, fields)
	return ret.Error(0)
}

// MockSessionRepository is a mock of auth.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a MockSessionRepository whose
// expectations are asserted when the test ends.
func NewMockSessionRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FindSessionsBy provides a mock function.
func (m *MockSessionRepository) FindSessionsBy(ctx context.Context, filter ...auth.Field) ([]*auth.UserSession, error) {
	ret := m.Called(ctx, filter)
	var sessions []*auth.UserSession
	if v := ret.Get(0); v != nil {
		sessions = v.([]*auth.UserSession)
	}
	return sessions, ret.Error(1)
}

// AddSession provides a mock function.
func (m *MockSessionRepository) AddSession(ctx context.Context, session *auth.UserSession) error {
	ret := m.Called(ctx, session)
	return ret.Error(0)
}

// RemoveSession provides a mock function.
func (m *MockSessionRepository) RemoveSession(ctx context.Context, id ulid.ULID) error {
	ret := m.Called(ctx, id)
	return ret.Error(0)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations are
// asserted when the test ends.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	ret := m.Called(password, hash)
	return ret.Bool(0), ret.Error(1)
}

// NeedsUpgrade provides a mock function.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	ret := m.Called(hash)
	return ret.Bool(0)
}

var (
	_ auth.UserDirectory     = (*MockUserDirectory)(nil)
	_ auth.SessionRepository = (*MockSessionRepository)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
)
