package users

import (
	"context"
	"fmt"
	"io"
)

// SmokeRequest names the sample user created and removed by RunSmoke
type SmokeRequest struct {
	UID         string
	Email       string
	PhoneNumber string
	DisplayName string
}

// DefaultSmokeRequest is the sample user of the quickstart
var DefaultSmokeRequest = SmokeRequest{
	UID:         "some-uid",
	Email:       "user@example.com",
	PhoneNumber: "+11234567890",
	DisplayName: "Jane Doe",
}

// RunSmoke creates a user with an explicit uid, reads it back by uid, email and
// phone, updates its display name and deletes it, printing one line per step.
// It stops at the first failing step. A sample user created before the failure
// is deleted again so the next run can create it.
func RunSmoke(ctx context.Context, svc *Service, w io.Writer, req SmokeRequest) (err error) {
	created, err := svc.CreateUser(ctx, CreateRequest{
		UID:         String(req.UID),
		Email:       String(req.Email),
		PhoneNumber: String(req.PhoneNumber),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Successfully created new user: %s\n", created.UID)

	deleted := false
	defer func() {
		if err == nil || deleted {
			return
		}
		if cleanupErr := svc.DeleteUser(context.WithoutCancel(ctx), req.UID); cleanupErr != nil {
			svc.logger.Warn("unable to remove sample user", "uid", req.UID, "error", cleanupErr)
			return
		}
		fmt.Fprintf(w, "Removed sample user after failure: %s\n", req.UID)
	}()

	fetched, err := svc.GetUser(ctx, req.UID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Successfully fetched user data: %s\n", fetched.UID)

	byEmail, err := svc.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Successfully fetched user data: %s (%s)\n", byEmail.UID, byEmail.Email)

	byPhone, err := svc.GetUserByPhoneNumber(ctx, req.PhoneNumber)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Successfully fetched user data: %s (%s)\n", byPhone.UID, byPhone.PhoneNumber)

	updated, err := svc.UpdateUser(ctx, req.UID, UpdateRequest{DisplayName: String(req.DisplayName)})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Successfully updated user: %s\n", updated.UID)

	deleted = true
	if err := svc.DeleteUser(ctx, req.UID); err != nil {
		return err
	}
	fmt.Fprintf(w, "Successfully deleted user: %s\n", req.UID)
	return nil
}
