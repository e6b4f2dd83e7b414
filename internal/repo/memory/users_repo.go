package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
)

// UsersRepo keeps users in process memory. One mutex guards every map, so
// balance updates on a record are applied one at a time.
type UsersRepo struct {
	mu sync.Mutex

	byID         map[string]user.User
	idByEmail    map[string]string
	idByReferral map[string]string
}

func NewUsersRepo() *UsersRepo {
	r := &UsersRepo{}
	r.reset()
	return r
}

// Reset drops every record.
func (r *UsersRepo) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func (r *UsersRepo) reset() {
	r.byID = make(map[string]user.User)
	r.idByEmail = make(map[string]string)
	r.idByReferral = make(map[string]string)
}

func (r *UsersRepo) Insert(ctx context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := user.NormalizeEmail(u.Email)

	if _, ok := r.idByEmail[email]; ok {
		return user.ErrDuplicateEmail
	}
	if _, ok := r.idByReferral[u.ReferralCode]; ok {
		return user.ErrDuplicateReferralCode
	}

	u.Email = email
	r.byID[u.ID] = u
	r.idByEmail[email] = u.ID
	r.idByReferral[u.ReferralCode] = u.ID

	return nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookup(r.idByEmail, user.NormalizeEmail(email))
}

func (r *UsersRepo) GetByReferralCode(ctx context.Context, code string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookup(r.idByReferral, user.NormalizeReferralCode(code))
}

func (r *UsersRepo) CreditBalance(ctx context.Context, id string, amount int64) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u.WalletBalance += amount
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u

	return u, nil
}

func (r *UsersRepo) DeductBalance(ctx context.Context, id string, amount int64) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if u.WalletBalance < amount {
		return user.User{}, user.ErrInsufficientBalance
	}

	u.WalletBalance -= amount
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u

	return u, nil
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byID), nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return nil
}

// lookup expects r.mu to be held.
func (r *UsersRepo) lookup(index map[string]string, key string) (user.User, error) {
	id, ok := index[key]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.byID[id], nil
}
