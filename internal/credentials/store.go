package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/notifications"
)

// DefaultReferralReward is credited to a referrer for every registration that
// presents their code.
const DefaultReferralReward int64 = 10

// Repository is the storage contract shared by the memory and postgres
// backends. Misses are reported as user.ErrNotFound; balance mutations on a
// single record must be serialised by the implementation.
type Repository interface {
	Insert(ctx context.Context, u user.User) error
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByReferralCode(ctx context.Context, code string) (user.User, error)
	CreditBalance(ctx context.Context, id string, amount int64) (user.User, error)
	DeductBalance(ctx context.Context, id string, amount int64) (user.User, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Dispatcher fires a notification without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg notifications.Message)
}

type CreditObserver interface {
	IncReferralCredit()
}

type Options struct {
	ReferralReward int64
	Logger         *slog.Logger
	Credits        CreditObserver
}

type NewUser struct {
	Email                  string
	Password               string
	Name                   string
	NotificationPreference user.NotificationPreference
	PhoneNumber            string
	ReferralCodeUsed       string
}

type Store struct {
	repo   Repository
	hasher PasswordHasher
	notify Dispatcher
	log    *slog.Logger

	reward  int64
	credits CreditObserver

	// compared against on unknown emails so a miss costs the same as a
	// wrong password
	dummyHash string
}

func NewStore(repo Repository, hasher PasswordHasher, notify Dispatcher, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReferralReward <= 0 {
		opts.ReferralReward = DefaultReferralReward
	}

	s := &Store{
		repo:    repo,
		hasher:  hasher,
		notify:  notify,
		log:     opts.Logger,
		reward:  opts.ReferralReward,
		credits: opts.Credits,
	}

	if h, err := hasher.Hash("not-a-real-password"); err == nil {
		s.dummyHash = h
	}

	return s
}

// Create registers a user and, when a known referral code was presented,
// credits the referrer. The credit is a second step: if it fails the new
// user stays registered and the failure is only logged.
func (s *Store) Create(ctx context.Context, in NewUser) (user.User, error) {
	email := user.NormalizeEmail(in.Email)

	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return user.User{}, user.ErrDuplicateEmail
	case !errors.Is(err, user.ErrNotFound):
		return user.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := user.New(user.CreateParams{
		Email:                  email,
		PasswordHash:           hash,
		Name:                   in.Name,
		NotificationPreference: in.NotificationPreference,
		PhoneNumber:            in.PhoneNumber,
	})

	if err := s.repo.Insert(ctx, u); err != nil {
		return user.User{}, err
	}

	s.dispatch(ctx, notifications.Registration(notifications.RecipientFromUser(u)))

	if code := user.NormalizeReferralCode(in.ReferralCodeUsed); code != "" {
		s.creditReferrer(ctx, code, u.ID)
	}

	return u, nil
}

func (s *Store) creditReferrer(ctx context.Context, code, newUserID string) {
	referrer, err := s.repo.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.log.InfoContext(ctx, "referral code not found", "referral_code", code, "user_id", newUserID)
			return
		}
		s.log.ErrorContext(ctx, "referral lookup failed", "referral_code", code, "user_id", newUserID, "err", err)
		return
	}

	credited, err := s.repo.CreditBalance(ctx, referrer.ID, s.reward)
	if err != nil {
		s.log.ErrorContext(ctx, "referral credit failed",
			"referrer_id", referrer.ID,
			"user_id", newUserID,
			"amount", s.reward,
			"err", err,
		)
		return
	}

	if s.credits != nil {
		s.credits.IncReferralCredit()
	}

	s.log.InfoContext(ctx, "referral credited",
		"referrer_id", credited.ID,
		"user_id", newUserID,
		"amount", s.reward,
		"balance", credited.WalletBalance,
	)

	s.dispatch(ctx, notifications.CreditReceived(notifications.RecipientFromUser(credited), s.reward))
}

// FindByEmail returns nil, nil when no user has the (case-insensitive) email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return found(s.repo.GetByEmail(ctx, user.NormalizeEmail(email)))
}

// FindByID returns nil, nil when the id is unknown.
func (s *Store) FindByID(ctx context.Context, id string) (*user.User, error) {
	return found(s.repo.GetByID(ctx, id))
}

// Authenticate returns nil, nil for an unknown email and for a wrong password
// alike. Only storage failures are errors.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if u == nil {
		if s.dummyHash != "" {
			_ = s.hasher.Compare(s.dummyHash, password)
		}
		return nil, nil
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, nil
	}

	return u, nil
}

// DeductBalance fails with user.ErrNotFound, user.ErrInsufficientBalance or
// user.ErrInvalidAmount. The balance is never clamped.
func (s *Store) DeductBalance(ctx context.Context, id string, amount int64) error {
	if amount <= 0 {
		return user.ErrInvalidAmount
	}

	u, err := s.repo.DeductBalance(ctx, id, amount)
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "wallet debited", "user_id", u.ID, "amount", amount, "balance", u.WalletBalance)
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Store) dispatch(ctx context.Context, msg notifications.Message) {
	if s.notify == nil {
		return
	}
	s.notify.Dispatch(ctx, msg)
}

func found(u user.User, err error) (*user.User, error) {
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
