package notifications

import (
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
)

func Registration(r Recipient) Message {
	body := fmt.Sprintf("Hello %s, thank you for registering with us!", r.Name)
	return route(r, KindRegistration, "Welcome!", body)
}

func CreditReceived(r Recipient, amount int64) Message {
	body := fmt.Sprintf("Hello %s, you have received Rs. %d as a referral reward! Your new wallet balance has been updated.", r.Name, amount)
	return route(r, KindCreditReceived, "Referral Reward Credited!", body)
}

func OrderConfirmed(r Recipient, transactionID string, amount float64) Message {
	body := fmt.Sprintf("Hello %s, your order #%s has been confirmed for Rs. %s. Thank you for shopping with us!",
		r.Name, transactionID, formatAmount(amount))
	return route(r, KindOrderConfirmed, "Order Confirmation", body)
}

// route sends SMS only when it is both preferred and possible; everything
// else, including an sms preference without a number, goes to email.
func route(r Recipient, kind Kind, subject, body string) Message {
	msg := Message{
		Kind:      kind,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	if r.Preference == user.PreferSMS && r.PhoneNumber != "" {
		msg.Channel = ChannelSMS
		msg.To = r.PhoneNumber
		return msg
	}

	msg.Channel = ChannelEmail
	msg.To = r.Email
	msg.Subject = subject
	return msg
}

// 250 -> "250", 19.5 -> "19.5"
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
