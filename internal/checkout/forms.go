package checkout

import (
	"net/mail"
	"strings"
	"unicode"

	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/pricing"
)

const defaultCountry = "Nigeria"

type ShippingForm struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	DeliveryType string `json:"delivery_type"`
	CouponCode   string `json:"coupon_code"`
}

func (f ShippingForm) details(fees pricing.FeeTable) (domain.ShippingDetails, *domain.ValidationError) {
	verr := domain.NewValidationError()
	d := domain.ShippingDetails{
		FullName:     strings.TrimSpace(f.FullName),
		Email:        strings.TrimSpace(f.Email),
		Phone:        strings.TrimSpace(f.Phone),
		Address:      strings.TrimSpace(f.Address),
		City:         strings.TrimSpace(f.City),
		State:        strings.TrimSpace(f.State),
		PostalCode:   strings.TrimSpace(f.PostalCode),
		Country:      strings.TrimSpace(f.Country),
		DeliveryType: domain.DeliveryType(strings.ToLower(strings.TrimSpace(f.DeliveryType))),
	}

	required := map[string]string{
		"full_name": d.FullName,
		"email":     d.Email,
		"phone":     d.Phone,
		"address":   d.Address,
		"city":      d.City,
		"state":     d.State,
	}
	for field, v := range required {
		if v == "" {
			verr.Add(field, "is required")
		}
	}

	if d.Email != "" {
		if _, err := mail.ParseAddress(d.Email); err != nil {
			verr.Add("email", "is not a valid email address")
		}
	}
	if d.Phone != "" && countDigits(d.Phone) < 7 {
		verr.Add("phone", "is too short")
	}
	if d.Country == "" {
		d.Country = defaultCountry
	}
	if d.DeliveryType == "" {
		d.DeliveryType = domain.DeliveryStandard
	}
	if _, err := fees.Fee(d.DeliveryType); err != nil {
		verr.Add("delivery_type", "is not offered")
	}

	return d, verr
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
