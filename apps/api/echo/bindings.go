package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clotrack/core"
	"github.com/trezcool/clotrack/core/user"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	RegisterRequest struct {
		Name            string   `json:"name"`
		Email           string   `json:"email"`
		Password        string   `json:"password"`
		PasswordConfirm string   `json:"password_confirm"`
		Roles           []string `json:"roles"`
		ProgramIDs      []string `json:"program_ids"`
	}

	// SubmitRequest alerts the program admins unless NotifyAdmins is false.
	SubmitRequest struct {
		NotifyAdmins *bool `json:"notify_admins"`
	}

	ReworkRequest struct {
		Comments  string `json:"comments" validate:"notblank"`
		SendEmail *bool  `json:"send_email"`
	}

	NeverComingInRequest struct {
		Reason string `json:"reason" validate:"max=1000"`
	}

	SectionStatusResponse struct {
		SectionID string `json:"section_id"`
		Status    string `json:"status"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (rr *ReworkRequest) Validate(validate *validator.Validate) error {
	rr.Comments = core.CleanString(rr.Comments)
	return validate.Struct(rr)
}

func (nr *NeverComingInRequest) Validate(validate *validator.Validate) error {
	nr.Reason = core.CleanString(nr.Reason)
	return validate.Struct(nr)
}

// NewUser places the registered user in the admin's institution.
func (rr RegisterRequest) NewUser(institutionID string) user.NewUser {
	return user.NewUser{
		InstitutionID:   institutionID,
		Name:            rr.Name,
		Email:           rr.Email,
		Password:        rr.Password,
		PasswordConfirm: rr.PasswordConfirm,
		Roles:           rr.Roles,
		ProgramIDs:      rr.ProgramIDs,
	}
}

// bindOptional binds the request body when there is one; an empty body leaves dst untouched.
func bindOptional(ctx echo.Context, dst interface{}) error {
	if ctx.Request().ContentLength == 0 {
		return nil
	}
	if err := ctx.Bind(dst); err != nil {
		return errors.Wrap(err, "binding request body")
	}
	return nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
