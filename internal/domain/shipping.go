package domain

type DeliveryType string

const (
	DeliveryStandard DeliveryType = "standard"
	DeliveryExpress  DeliveryType = "express"
	DeliveryPickup   DeliveryType = "pickup"
)

type ShippingDetails struct {
	FullName     string       `json:"full_name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	Address      string       `json:"address"`
	City         string       `json:"city"`
	State        string       `json:"state"`
	PostalCode   string       `json:"postal_code,omitempty"`
	Country      string       `json:"country"`
	DeliveryType DeliveryType `json:"delivery_type"`
}
