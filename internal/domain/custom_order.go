package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CustomOrder is a request for a part the catalog does not list.
type CustomOrder struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address,omitempty"`
	ProductName string    `json:"product_name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// MissingFields lists the required fields that are blank, in form order.
func (o CustomOrder) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"name", o.Name},
		{"email", o.Email},
		{"phone", o.Phone},
		{"product_name", o.ProductName},
		{"description", o.Description},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
