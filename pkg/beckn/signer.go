package beckn

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"
)

// Signer produces the Authorization header value for a protocol request.
// The concrete signing/authentication mechanism is a counterparty detail,
// so it stays pluggable behind this interface.
type Signer interface {
	Sign(payload []byte) (string, error)
}

// Ed25519Signer signs request payloads with an ed25519 key.
type Ed25519Signer struct {
	keyID      string
	privateKey ed25519.PrivateKey
}

// NewEd25519Signer generates a fresh keypair when none is supplied.
func NewEd25519Signer(keyID string, privateKey ed25519.PrivateKey) (*Ed25519Signer, error) {
	if privateKey == nil {
		_, generated, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, errors.Wrap(err, "generating signing key")
		}
		privateKey = generated
	}
	if keyID == "" {
		keyID = "gridshift"
	}
	return &Ed25519Signer{keyID: keyID, privateKey: privateKey}, nil
}

func (s *Ed25519Signer) Sign(payload []byte) (string, error) {
	sig := ed25519.Sign(s.privateKey, payload)
	return fmt.Sprintf(`Signature keyId=%q,algorithm="ed25519",signature=%q`,
		s.keyID, base64.StdEncoding.EncodeToString(sig)), nil
}

// PublicKey exposes the verification key for registration with the
// counterparty.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.privateKey.Public().(ed25519.PublicKey)
}

// NoopSigner signs nothing. For tests and unauthenticated sandboxes.
type NoopSigner struct{}

func (NoopSigner) Sign([]byte) (string, error) {
	return "", nil
}

var (
	_ Signer = &Ed25519Signer{}
	_ Signer = NoopSigner{}
)
