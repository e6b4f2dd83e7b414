package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/credentials"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/notifications"
)

type CredentialStore interface {
	Create(ctx context.Context, in credentials.NewUser) (user.User, error)
	FindByID(ctx context.Context, id string) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	DeductBalance(ctx context.Context, id string, amount int64) error
}

type TokenCodec interface {
	Issue(id auth.Identity) (string, time.Time, error)
	Verify(token string) (auth.Identity, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg notifications.Message)
}

// Session is what a successful register or login hands back.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      user.PublicView
}

type AuthService struct {
	store  CredentialStore
	tokens TokenCodec
	notify Dispatcher
	log    *slog.Logger
}

func NewAuthService(store CredentialStore, tokens TokenCodec, notify Dispatcher, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}

	return &AuthService{
		store:  store,
		tokens: tokens,
		notify: notify,
		log:    log,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if err := in.Validate(); err != nil {
		return Session{}, err
	}

	phone, err := user.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return Session{}, fieldError("phoneNumber", "must be a valid phone number")
	}

	u, err := s.store.Create(ctx, credentials.NewUser{
		Email:                  strings.TrimSpace(in.Email),
		Password:               in.Password,
		Name:                   strings.TrimSpace(in.Name),
		NotificationPreference: user.NotificationPreference(in.NotificationPreference),
		PhoneNumber:            phone,
		ReferralCodeUsed:       in.ReferralCodeUsed,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("register: %w", err)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "referral_used", in.ReferralCodeUsed != "")

	return s.session(u)
}

// Login fails with ErrInvalidCredentials for an unknown email and a wrong
// password alike.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := in.Validate(); err != nil {
		return Session{}, err
	}

	u, err := s.store.Authenticate(ctx, strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}

	if u == nil {
		s.log.InfoContext(ctx, "login rejected")
		return Session{}, ErrInvalidCredentials
	}

	return s.session(*u)
}

// VerifyIdentity accepts exactly "Bearer <token>". Every failure is
// ErrUnauthorized; the underlying reason is only logged.
func (s *AuthService) VerifyIdentity(ctx context.Context, header string) (auth.Identity, error) {
	raw, err := auth.ParseBearer(header)
	if err != nil {
		return s.reject(ctx, err)
	}

	return s.VerifyToken(ctx, raw)
}

func (s *AuthService) VerifyToken(ctx context.Context, raw string) (auth.Identity, error) {
	id, err := s.tokens.Verify(raw)
	if err != nil {
		return s.reject(ctx, err)
	}

	return id, nil
}

func (s *AuthService) reject(ctx context.Context, err error) (auth.Identity, error) {
	s.log.DebugContext(ctx, "token rejected", "reason", auth.Reason(err))
	return auth.Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (user.PublicView, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return user.PublicView{}, fmt.Errorf("get profile: %w", err)
	}

	if u == nil {
		return user.PublicView{}, user.ErrNotFound
	}

	return u.Public(), nil
}

// DeductWalletBalance surfaces user.ErrNotFound, user.ErrInsufficientBalance
// and an InputError for a non-positive amount.
func (s *AuthService) DeductWalletBalance(ctx context.Context, userID string, amount int64) error {
	err := s.store.DeductBalance(ctx, userID, amount)

	if errors.Is(err, user.ErrInvalidAmount) {
		return fieldError("amount", "must be greater than 0")
	}

	return err
}

// NotifyOrder sends an order confirmation. An unknown user is not an error:
// the send is skipped and logged.
func (s *AuthService) NotifyOrder(ctx context.Context, userID, transactionID string, amount float64) error {
	if strings.TrimSpace(transactionID) == "" {
		return fieldError("transactionId", "cannot be blank")
	}
	if amount <= 0 {
		return fieldError("amount", "must be greater than 0")
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify order: %w", err)
	}

	if u == nil {
		s.log.WarnContext(ctx, "order notification skipped, user not found", "user_id", userID, "transaction_id", transactionID)
		return nil
	}

	if s.notify != nil {
		s.notify.Dispatch(ctx, notifications.OrderConfirmed(notifications.RecipientFromUser(*u), transactionID, amount))
	}

	return nil
}

func (s *AuthService) session(u user.User) (Session, error) {
	tok, exp, err := s.tokens.Issue(auth.Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	return Session{Token: tok, ExpiresAt: exp, User: u.Public()}, nil
}
