package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const SignatureHeader = "x-paystack-signature"

type EventType string

const (
	EventChargeSuccess   EventType = "charge.success"
	EventTransferSuccess EventType = "transfer.success"
	EventTransferFailed  EventType = "transfer.failed"
	EventUnknown         EventType = "unknown"
)

type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ChargeData struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Channel   string `json:"channel"`
}

type TransferData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
}

// Sign returns the hex HMAC-SHA-512 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the raw request body against the header value.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}

func ParseEvent(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

func (e Event) Type() EventType {
	switch EventType(e.Event) {
	case EventChargeSuccess, EventTransferSuccess, EventTransferFailed:
		return EventType(e.Event)
	default:
		return EventUnknown
	}
}

func (e Event) Charge() (ChargeData, error) {
	var d ChargeData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return ChargeData{}, fmt.Errorf("decode charge data: %w", err)
	}
	return d, nil
}

func (e Event) Transfer() (TransferData, error) {
	var d TransferData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return TransferData{}, fmt.Errorf("decode transfer data: %w", err)
	}
	return d, nil
}

// Amount converts a webhook amount from minor units.
func Amount(minor int64) float64 { return fromMinor(minor) }
