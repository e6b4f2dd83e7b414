package notifications

import (
	"context"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Kind string

const (
	KindRegistration   Kind = "registration"
	KindCreditReceived Kind = "credit_received"
	KindOrderConfirmed Kind = "order_confirmed"
)

// Recipient is the slice of a user profile needed to address a message.
type Recipient struct {
	Name        string
	Email       string
	PhoneNumber string
	Preference  user.NotificationPreference
}

func RecipientFromUser(u user.User) Recipient {
	return Recipient{
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Preference:  u.NotificationPreference,
	}
}

// Message is a rendered, routed notification. It is also the wire format on
// the redis outbox.
type Message struct {
	Kind      Kind      `json:"kind"`
	Channel   Channel   `json:"channel"`
	To        string    `json:"to"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier delivers one message. Implementations may fail; callers that must
// not fail go through Dispatcher.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
