// internal/oauth/state.go
package oauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"edgegate/pkg/faults"
)

// State is the payload round-tripped through the provider as the opaque
// state parameter. It is created at initiate and consumed exactly once at
// callback.
type State struct {
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	RedirectURL string `json:"redirect_url"`
	Provider    string `json:"provider"`
	Nonce       string `json:"nonce"`
}

// Codec seals states into url-safe opaque strings. Sealing is AES-GCM over
// the JSON payload with a sha256-derived key, so any altered byte fails
// authentication on decode. Blob layout: 0x01 | nonce | ciphertext.
type Codec struct {
	key []byte
}

// NewCodec derives the sealing key from STATE_ENCRYPTION_KEY. An empty key
// gets a random per-process one: states then survive only until restart,
// which dev accepts and prod should not.
func NewCodec(key string) (*Codec, error) {
	if key == "" {
		k := make([]byte, 32)
		if _, err := rand.Read(k); err != nil {
			return nil, err
		}
		return &Codec{key: k}, nil
	}
	return &Codec{key: []byte(key)}, nil
}

func (c *Codec) gcm() (cipher.AEAD, error) {
	h := sha256.Sum256(c.key)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (c *Codec) Encode(s State) (string, error) {
	plain, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = 0x01
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode unseals raw. Every failure mode (bad base64, wrong version, failed
// authentication, structurally incomplete payload) comes back as
// InvalidOAuthState; callers never see partial states.
func (c *Codec) Decode(raw string) (State, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return State{}, faults.Wrap(faults.InvalidOAuthState, err)
	}
	gcm, err := c.gcm()
	if err != nil {
		return State{}, err
	}
	if len(b) < 1+gcm.NonceSize()+1 || b[0] != 0x01 {
		return State{}, faults.New(faults.InvalidOAuthState, "malformed state blob")
	}
	nonce, ct := b[1:1+gcm.NonceSize()], b[1+gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return State{}, faults.Wrap(faults.InvalidOAuthState, err)
	}
	var s State
	if err := json.Unmarshal(plain, &s); err != nil {
		return State{}, faults.Wrap(faults.InvalidOAuthState, err)
	}
	if s.TenantID == "" || s.Provider == "" || s.Nonce == "" {
		return State{}, faults.New(faults.InvalidOAuthState, "state missing required fields")
	}
	return s, nil
}
