package messaging

import (
	"fmt"
	"io"

	"firebase.google.com/go/v4/errorutils"
	fcm "firebase.google.com/go/v4/messaging"

	"fbadmin/internal/admin"
)

// errorCodes maps the SDK's error predicates to vendor codes, first match wins.
// FCM specific codes come before the platform ones they refine.
var errorCodes = []struct {
	code  string
	match func(error) bool
}{
	{admin.CodeUnregistered, fcm.IsUnregistered},
	{admin.CodeSenderIDMismatch, fcm.IsSenderIDMismatch},
	{admin.CodeQuotaExceeded, fcm.IsQuotaExceeded},
	{admin.CodeThirdPartyAuth, fcm.IsThirdPartyAuthError},
	{admin.CodeInvalidArgument, errorutils.IsInvalidArgument},
	{admin.CodeUnauthenticated, errorutils.IsUnauthenticated},
	{admin.CodePermissionDenied, errorutils.IsPermissionDenied},
	{admin.CodeNotFound, errorutils.IsNotFound},
	{admin.CodeUnavailable, errorutils.IsUnavailable},
	{admin.CodeInternal, errorutils.IsInternal},
	{admin.CodeDeadlineExceeded, errorutils.IsDeadlineExceeded},
	{admin.CodeUnknown, errorutils.IsUnknown},
}

// mapError turns an SDK send error into an *admin.SdkError. A backend response
// is kept as an *admin.HTTPError so its body is printed verbatim. Errors that
// carry no FCM code were raised by the SDK's own message validation before
// anything was sent.
func mapError(err error) error {
	code := ""
	for _, candidate := range errorCodes {
		if candidate.match(err) {
			code = candidate.code
			break
		}
	}

	resp := errorutils.HTTPResponse(err)
	if code == "" && resp == nil {
		return fmt.Errorf("%w: %v", admin.ErrInvalidArgument, err)
	}
	if code == "" {
		code = admin.CodeUnknown
	}

	cause := err
	if resp != nil {
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr == nil {
			cause = fmt.Errorf("%w: %w", &admin.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}, err)
		}
	}
	return &admin.SdkError{Service: admin.ServiceTypeMessaging, Code: code, Err: cause}
}
