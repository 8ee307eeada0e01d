package client

import (
	"fmt"

	"github.com/asaskevich/govalidator"

	"joblinker/internal/auth/models"
	"joblinker/pkg/platform/sentinel"
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", sentinel.ErrInvalidInput, msg)
}

func validateLogin(req models.LoginRequest) error {
	if !govalidator.StringLength(req.Email, "3", "255") || !govalidator.IsEmail(req.Email) {
		return invalid("invalid email")
	}
	if req.Password == "" {
		return invalid("password is required")
	}
	return nil
}

func validateRegister(req models.RegisterRequest) error {
	if !govalidator.StringLength(req.Name, "1", "120") {
		return invalid("name is required")
	}
	if !govalidator.StringLength(req.Email, "3", "255") || !govalidator.IsEmail(req.Email) {
		return invalid("invalid email")
	}
	if !govalidator.StringLength(req.Password, "6", "128") {
		return invalid("password must be between 6 and 128 characters")
	}
	if !req.Role.Valid() {
		return invalid(fmt.Sprintf("role must be %q or %q", models.RoleCandidate, models.RoleRecruiter))
	}
	return nil
}
