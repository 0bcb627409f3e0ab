package domain

import "time"

// Account is a utility account at one provider.
// DriverName selects the automation driver; Identifiers carries the
// named account numbers the driver needs (passed as env vars).
type Account struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Frequency   string            `json:"frequency"`
	WebsiteURL  string            `json:"website_url,omitempty"`
	DriverName  string            `json:"driver_name,omitempty"`
	Identifiers map[string]string `json:"identifiers"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
}

// PaymentMethod holds an encrypted card. Plaintext card data is never
// stored; EncryptedData is an AES-GCM sealed CardData payload.
type PaymentMethod struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	CardType       string    `json:"card_type"`
	LastFourDigits string    `json:"last_four_digits"`
	EncryptedData  []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
