// Package users manages Firebase Authentication user records through the
// Admin SDK.
package users

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"

	"fbadmin/internal/admin"
)

// Client is the part of *auth.Client the service needs
type Client interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
	GetUserByPhoneNumber(ctx context.Context, phone string) (*auth.UserRecord, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

var _ Client = (*auth.Client)(nil)

// UserRecord is a remote identity record
type UserRecord struct {
	UID           string     `json:"uid"`
	Email         string     `json:"email,omitempty"`
	PhoneNumber   string     `json:"phoneNumber,omitempty"`
	DisplayName   string     `json:"displayName,omitempty"`
	PhotoURL      string     `json:"photoUrl,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	Disabled      bool       `json:"disabled"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	LastSignInAt  *time.Time `json:"lastSignInAt,omitempty"`
}

// CreateRequest lists the fields of a new user. Nil fields are left to the server.
type CreateRequest struct {
	UID           *string
	Email         *string
	PhoneNumber   *string
	Password      *string
	DisplayName   *string
	PhotoURL      *string
	EmailVerified *bool
	Disabled      *bool
}

// UpdateRequest lists the fields to change. Nil fields are not touched.
type UpdateRequest struct {
	Email         *string
	PhoneNumber   *string
	Password      *string
	DisplayName   *string
	PhotoURL      *string
	EmailVerified *bool
	Disabled      *bool
}

// String returns a pointer to s
func String(s string) *string { return &s }

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }

// Service performs one remote call per operation
type Service struct {
	client  Client
	logger  admin.Logger
	metrics admin.Metrics
}

// NewService creates a user service over client
func NewService(client Client, logger admin.Logger, metrics admin.Metrics) *Service {
	return &Service{
		client:  client,
		logger:  logger.With("service", admin.ServiceTypeAuth.String()),
		metrics: metrics,
	}
}

// GetUser fetches a user by uid
func (s *Service) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", admin.ErrInvalidArgument)
	}
	return s.fetch(ctx, "get_user", func() (*auth.UserRecord, error) {
		return s.client.GetUser(ctx, uid)
	})
}

// GetUserByEmail fetches a user by email address
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", admin.ErrInvalidArgument)
	}
	return s.fetch(ctx, "get_user_by_email", func() (*auth.UserRecord, error) {
		return s.client.GetUserByEmail(ctx, email)
	})
}

// GetUserByPhoneNumber fetches a user by E.164 phone number
func (s *Service) GetUserByPhoneNumber(ctx context.Context, phone string) (*UserRecord, error) {
	if phone == "" {
		return nil, fmt.Errorf("%w: phone number is required", admin.ErrInvalidArgument)
	}
	return s.fetch(ctx, "get_user_by_phone", func() (*auth.UserRecord, error) {
		return s.client.GetUserByPhoneNumber(ctx, phone)
	})
}

// CreateUser creates a user with the set fields of req
func (s *Service) CreateUser(ctx context.Context, req CreateRequest) (*UserRecord, error) {
	return s.fetch(ctx, "create_user", func() (*auth.UserRecord, error) {
		return s.client.CreateUser(ctx, req.toSDK())
	})
}

// UpdateUser changes the set fields of req on user uid
func (s *Service) UpdateUser(ctx context.Context, uid string, req UpdateRequest) (*UserRecord, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", admin.ErrInvalidArgument)
	}
	return s.fetch(ctx, "update_user", func() (*auth.UserRecord, error) {
		return s.client.UpdateUser(ctx, uid, req.toSDK())
	})
}

// DeleteUser deletes user uid
func (s *Service) DeleteUser(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid is required", admin.ErrInvalidArgument)
	}
	start := time.Now()
	err := s.client.DeleteUser(ctx, uid)
	s.observe("delete_user", start, err)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, operation string, call func() (*auth.UserRecord, error)) (*UserRecord, error) {
	start := time.Now()
	record, err := call()
	s.observe(operation, start, err)
	if err != nil {
		return nil, mapError(err)
	}
	return fromSDK(record), nil
}

func (s *Service) observe(operation string, start time.Time, err error) {
	outcome := admin.OutcomeSuccess
	if err != nil {
		outcome = admin.OutcomeFailure
		s.logger.Debug("auth call failed", "operation", operation, "error", err)
	}
	s.metrics.ObserveRemoteCall(admin.ServiceTypeAuth, operation, outcome, time.Since(start))
}

func (r CreateRequest) toSDK() *auth.UserToCreate {
	user := &auth.UserToCreate{}
	if r.UID != nil {
		user = user.UID(*r.UID)
	}
	if r.Email != nil {
		user = user.Email(*r.Email)
	}
	if r.EmailVerified != nil {
		user = user.EmailVerified(*r.EmailVerified)
	}
	if r.Password != nil {
		user = user.Password(*r.Password)
	}
	if r.PhoneNumber != nil {
		user = user.PhoneNumber(*r.PhoneNumber)
	}
	if r.DisplayName != nil {
		user = user.DisplayName(*r.DisplayName)
	}
	if r.PhotoURL != nil {
		user = user.PhotoURL(*r.PhotoURL)
	}
	if r.Disabled != nil {
		user = user.Disabled(*r.Disabled)
	}
	return user
}

func (r UpdateRequest) toSDK() *auth.UserToUpdate {
	user := &auth.UserToUpdate{}
	if r.Email != nil {
		user = user.Email(*r.Email)
	}
	if r.PhoneNumber != nil {
		user = user.PhoneNumber(*r.PhoneNumber)
	}
	if r.EmailVerified != nil {
		user = user.EmailVerified(*r.EmailVerified)
	}
	if r.Password != nil {
		user = user.Password(*r.Password)
	}
	if r.DisplayName != nil {
		user = user.DisplayName(*r.DisplayName)
	}
	if r.PhotoURL != nil {
		user = user.PhotoURL(*r.PhotoURL)
	}
	if r.Disabled != nil {
		user = user.Disabled(*r.Disabled)
	}
	return user
}

func fromSDK(record *auth.UserRecord) *UserRecord {
	if record == nil {
		return nil
	}
	user := &UserRecord{
		EmailVerified: record.EmailVerified,
		Disabled:      record.Disabled,
	}
	if record.UserInfo != nil {
		user.UID = record.UID
		user.Email = record.Email
		user.PhoneNumber = record.PhoneNumber
		user.DisplayName = record.DisplayName
		user.PhotoURL = record.PhotoURL
	}
	if record.UserMetadata != nil {
		user.CreatedAt = millis(record.UserMetadata.CreationTimestamp)
		user.LastSignInAt = millis(record.UserMetadata.LastLogInTimestamp)
	}
	return user
}

// millis converts an SDK timestamp; zero means the server has none
func millis(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
