package service

import (
	"strings"

	"github.com/geocoder89/authservice/internal/domain/user"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const MinPasswordLength = 6

type RegisterInput struct {
	Email                  string `json:"email"`
	Password               string `json:"password"`
	Name                   string `json:"name"`
	NotificationPreference string `json:"notificationPreference"`
	PhoneNumber            string `json:"phoneNumber"`
	ReferralCodeUsed       string `json:"referralCodeUsed"`
}

func (r RegisterInput) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)

	return fromValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.NotificationPreference, validation.In(string(user.PreferEmail), string(user.PreferSMS))),
	))
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginInput) Validate() error {
	r.Email = strings.TrimSpace(r.Email)

	return fromValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}
