package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type NotificationPreference string

const (
	PreferEmail NotificationPreference = "email"
	PreferSMS   NotificationPreference = "sms"
)

func (p NotificationPreference) IsValid() bool {
	switch p {
	case PreferEmail, PreferSMS:
		return true
	default:
		return false
	}
}

var (
	ErrDuplicateEmail        = errors.New("user with this email already exists")
	ErrDuplicateReferralCode = errors.New("referral code already in use")
	ErrNotFound              = errors.New("user not found")
	ErrInsufficientBalance   = errors.New("insufficient wallet balance")
	ErrInvalidAmount         = errors.New("amount must be positive")
)

type User struct {
	ID                     string                 `json:"id"`
	Email                  string                 `json:"email"`
	PasswordHash           string                 `json:"-"` // never expose hash in JSON
	Name                   string                 `json:"name"`
	NotificationPreference NotificationPreference `json:"notificationPreference,omitempty"`
	PhoneNumber            string                 `json:"phoneNumber,omitempty"`
	ReferralCode           string                 `json:"referralCode"`
	WalletBalance          int64                  `json:"walletBalance"`
	CreatedAt              time.Time              `json:"createdAt"`
	UpdatedAt              time.Time              `json:"updatedAt"`
}

// PublicView is what leaves the service. It has no password field at all, so
// no encoder setting can leak the hash.
type PublicView struct {
	ID                     string                 `json:"id"`
	Email                  string                 `json:"email"`
	Name                   string                 `json:"name"`
	NotificationPreference NotificationPreference `json:"notificationPreference,omitempty"`
	PhoneNumber            string                 `json:"phoneNumber,omitempty"`
	ReferralCode           string                 `json:"referralCode"`
	WalletBalance          int64                  `json:"walletBalance"`
	CreatedAt              time.Time              `json:"createdAt"`
}

func (u User) Public() PublicView {
	return PublicView{
		ID:                     u.ID,
		Email:                  u.Email,
		Name:                   u.Name,
		NotificationPreference: u.NotificationPreference,
		PhoneNumber:            u.PhoneNumber,
		ReferralCode:           u.ReferralCode,
		WalletBalance:          u.WalletBalance,
		CreatedAt:              u.CreatedAt,
	}
}

// PrefersSMS reports whether SMS delivery is both requested and possible.
func (u User) PrefersSMS() bool {
	return u.NotificationPreference == PreferSMS && u.PhoneNumber != ""
}

type CreateParams struct {
	Email                  string
	PasswordHash           string
	Name                   string
	NotificationPreference NotificationPreference
	PhoneNumber            string
}

// New builds a fresh record: new id, new referral code, empty wallet.
func New(p CreateParams) User {
	now := time.Now().UTC()

	return User{
		ID:                     uuid.NewString(),
		Email:                  NormalizeEmail(p.Email),
		PasswordHash:           p.PasswordHash,
		Name:                   p.Name,
		NotificationPreference: p.NotificationPreference,
		PhoneNumber:            p.PhoneNumber,
		ReferralCode:           NewReferralCode(),
		WalletBalance:          0,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewReferralCode is the first group of a random UUID, upper-cased: eight
// hex characters. Collisions are rare enough that they surface as
// ErrDuplicateReferralCode instead of being retried.
func NewReferralCode() string {
	head, _, _ := strings.Cut(uuid.NewString(), "-")
	return strings.ToUpper(head)
}

func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
