package users

import (
	"firebase.google.com/go/v4/auth"

	"fbadmin/internal/admin"
)

// errorCodes maps the SDK's error predicates to vendor codes, first match wins
var errorCodes = []struct {
	code  string
	match func(error) bool
}{
	{admin.CodeUserNotFound, auth.IsUserNotFound},
	{admin.CodeEmailAlreadyExists, auth.IsEmailAlreadyExists},
	{admin.CodeUIDAlreadyExists, auth.IsUIDAlreadyExists},
	{admin.CodePhoneAlreadyExists, auth.IsPhoneNumberAlreadyExists},
}

func mapError(err error) error {
	if admin.IsCredentialError(err) {
		return err
	}
	code := admin.CodeUnknown
	for _, candidate := range errorCodes {
		if candidate.match(err) {
			code = candidate.code
			break
		}
	}
	return &admin.SdkError{Service: admin.ServiceTypeAuth, Code: code, Err: err}
}
