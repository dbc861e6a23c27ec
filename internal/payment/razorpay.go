// Package payment creates hosted-payment orders with Razorpay and verifies
// the signatures returned by the checkout.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"shop-service/internal/apperr"

	razorpay "github.com/razorpay/razorpay-go"
)

// Session is handed to the client to open the hosted checkout.
type Session struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	KeyID    string `json:"keyId"`
}

type Gateway interface {
	CreateSession(ctx context.Context, amountMinor int64, receipt string, notes map[string]string) (*Session, error)
	FetchSession(ctx context.Context, providerOrderID string) (*Session, error)
	VerifySignature(providerOrderID, paymentID, signature string) bool
}

type Razorpay struct {
	client   *razorpay.Client
	keyID    string
	secret   string
	currency string
}

func NewRazorpay(keyID, secret, currency string) *Razorpay {
	return &Razorpay{
		client:   razorpay.NewClient(keyID, secret),
		keyID:    keyID,
		secret:   secret,
		currency: currency,
	}
}

// CreateSession registers an order of amountMinor (paise, cents) with
// Razorpay.
func (r *Razorpay) CreateSession(_ context.Context, amountMinor int64, receipt string, notes map[string]string) (*Session, error) {
	if r.keyID == "" || r.secret == "" {
		return nil, apperr.External(nil, "Payment provider is not configured")
	}

	data := map[string]interface{}{
		"amount":          amountMinor,
		"currency":        r.currency,
		"receipt":         receipt,
		"payment_capture": 1,
		"notes":           notes,
	}
	order, err := r.client.Order.Create(data, nil)
	if err != nil {
		return nil, apperr.External(err, "Failed to create payment session")
	}

	id, _ := order["id"].(string)
	if id == "" {
		return nil, apperr.External(fmt.Errorf("razorpay response without id"), "Failed to create payment session")
	}
	return &Session{ID: id, Amount: amountMinor, Currency: r.currency, Receipt: receipt, KeyID: r.keyID}, nil
}

// FetchSession reads back a provider order so the amount and receipt that
// were actually charged can be checked.
func (r *Razorpay) FetchSession(_ context.Context, providerOrderID string) (*Session, error) {
	if r.keyID == "" || r.secret == "" {
		return nil, apperr.External(nil, "Payment provider is not configured")
	}
	order, err := r.client.Order.Fetch(providerOrderID, nil, nil)
	if err != nil {
		return nil, apperr.External(err, "Failed to fetch payment session")
	}
	return sessionFromOrder(order, r.keyID)
}

func sessionFromOrder(order map[string]interface{}, keyID string) (*Session, error) {
	id, _ := order["id"].(string)
	if id == "" {
		return nil, apperr.External(fmt.Errorf("razorpay response without id"), "Failed to fetch payment session")
	}
	s := &Session{ID: id, KeyID: keyID}
	s.Receipt, _ = order["receipt"].(string)
	s.Currency, _ = order["currency"].(string)
	switch v := order["amount"].(type) {
	case float64:
		s.Amount = int64(v)
	case int64:
		s.Amount = v
	case int:
		s.Amount = int64(v)
	default:
		return nil, apperr.External(fmt.Errorf("razorpay order %s has amount %v", id, v), "Failed to fetch payment session")
	}
	return s, nil
}

// VerifySignature checks the checkout signature, an HMAC-SHA256 of
// "<order_id>|<payment_id>" keyed with the API secret.
func (r *Razorpay) VerifySignature(providerOrderID, paymentID, signature string) bool {
	return VerifySignature(r.secret, providerOrderID, paymentID, signature)
}

func VerifySignature(secret, providerOrderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(providerOrderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
