package services

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user with this email or username already exists")
	ErrEmailTaken    = fmt.Errorf("%w: email already exists", ErrDuplicateUser)
	ErrUsernameTaken = fmt.Errorf("%w: username already exists", ErrDuplicateUser)

	ErrValidation             = errors.New("validation failed")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountDeactivated     = errors.New("account is deactivated")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrFederatedAccount       = errors.New("password cannot be changed for Google accounts. Please change your password through your Google Account settings")

	ErrInvalidRole            = errors.New("invalid role")
	ErrLastSuperAdmin         = errors.New("cannot demote the last super admin")
	ErrCannotModifySuperAdmin = errors.New("cannot modify super admin status")
	ErrCannotDeleteSelf       = errors.New("cannot delete your own account")
	ErrCannotDeleteSuperAdmin = errors.New("cannot delete other super admin accounts")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// ValidationError carries a caller-facing reason and matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}

// ValidationMessage returns the bare reason of a ValidationError anywhere in err's chain.
func ValidationMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}
