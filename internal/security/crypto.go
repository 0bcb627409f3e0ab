// Package security encrypts payment-card data at rest and in transit
// to a driver. Cards are sealed with AES-256-GCM under a process-wide
// symmetric key; plaintext exists only in memory while a pay driver's
// environment is built.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cuentas-labs/cuentas/internal/domain"
)

// CardData is the plaintext card payload. It is never persisted or
// logged; it crosses the driver boundary as env vars only.
type CardData struct {
	CardNumber string `json:"card_number"`
	ExpiryDate string `json:"expiry_date"` // MM/YY or MM/YYYY
	CVV        string `json:"cvv"`
}

// Validate checks the expiry format. A card stored with an
// unparseable expiry would surface only at payment time as empty
// CARD_EXP_* variables in the driver env, so it is rejected up front.
func (c CardData) Validate() error {
	parts := strings.SplitN(c.ExpiryDate, "/", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expiry date %q: want MM/YY or MM/YYYY", c.ExpiryDate)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return fmt.Errorf("expiry date %q: invalid month", c.ExpiryDate)
	}
	if l := len(parts[1]); l != 2 && l != 4 {
		return fmt.Errorf("expiry date %q: invalid year", c.ExpiryDate)
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return fmt.Errorf("expiry date %q: invalid year", c.ExpiryDate)
	}
	return nil
}

// ExpMonth returns the two-digit expiry month.
func (c CardData) ExpMonth() string {
	parts := strings.SplitN(c.ExpiryDate, "/", 2)
	month := parts[0]
	if len(month) == 1 {
		month = "0" + month
	}
	return month
}

// ExpYear returns the four-digit expiry year, prefixing "20" onto
// two-digit years.
func (c CardData) ExpYear() string {
	parts := strings.SplitN(c.ExpiryDate, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	year := parts[1]
	if len(year) == 2 {
		year = "20" + year
	}
	return year
}

// Gateway performs symmetric card encryption with a cached key.
// The key is read once from its source and held for process lifetime.
// One instance is shared by the API handlers and all orchestrator
// workers, so initialization must be safe under concurrent first use.
type Gateway struct {
	keyHex string

	once    sync.Once
	aead    cipher.AEAD
	initErr error
}

// NewGateway creates a gateway from a 64-hex-char AES-256 key. An empty
// key is allowed at construction; operations then fail with
// ErrEncryptionKeyMissing so a keyless deployment can still sync bills.
func NewGateway(keyHex string) *Gateway {
	return &Gateway{keyHex: keyHex}
}

// GenerateKey returns a fresh random AES-256 key as 64 hex characters.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// cipherFor lazily initializes the AEAD from the configured key,
// exactly once across all goroutines.
func (g *Gateway) cipherFor() (cipher.AEAD, error) {
	g.once.Do(func() {
		if g.keyHex == "" {
			g.initErr = domain.ErrEncryptionKeyMissing
			return
		}
		key, err := hex.DecodeString(g.keyHex)
		if err != nil || len(key) != 32 {
			g.initErr = fmt.Errorf("%w: key must be 64 hex characters", domain.ErrEncryptionKeyMissing)
			return
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			g.initErr = fmt.Errorf("init cipher: %w", err)
			return
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			g.initErr = fmt.Errorf("init gcm: %w", err)
			return
		}
		g.aead = aead
	})
	return g.aead, g.initErr
}

// Encrypt seals a card payload. The random nonce is prepended to the
// ciphertext.
func (g *Gateway) Encrypt(card CardData) ([]byte, error) {
	aead, err := g.cipherFor()
	if err != nil {
		return nil, err
	}
	plaintext, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("encode card data: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a sealed card payload. Fails loudly on any tampering or
// key mismatch — never returns partial plaintext.
func (g *Gateway) Decrypt(ciphertext []byte) (CardData, error) {
	aead, err := g.cipherFor()
	if err != nil {
		return CardData{}, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return CardData{}, domain.ErrDecryptionFailed
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return CardData{}, domain.ErrDecryptionFailed
	}
	var card CardData
	if err := json.Unmarshal(plaintext, &card); err != nil {
		return CardData{}, domain.ErrDecryptionFailed
	}
	return card, nil
}
