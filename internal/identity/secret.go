// Package identity is the Secret & Identity Store: a persistent JWT
// signing secret, a user file with bcrypt-hashed passwords and roles, and
// the token service operators authenticate with.
package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// LoadOrCreateSecret loads the signing secret from path, generating and
// persisting a new 32-byte secret on first run. The secret is never
// regenerated on subsequent boots: tokens must survive restarts.
func LoadOrCreateSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		secret, derr := base64.StdEncoding.DecodeString(string(data))
		if derr != nil {
			return nil, fmt.Errorf("decode signing secret: %w", derr)
		}
		return secret, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read signing secret: %w", err)
	}

	secret := make([]byte, 32)
	if _, rerr := rand.Read(secret); rerr != nil {
		return nil, fmt.Errorf("generate signing secret: %w", rerr)
	}
	encoded := base64.StdEncoding.EncodeToString(secret)
	if werr := os.WriteFile(path, []byte(encoded), 0o600); werr != nil {
		return nil, fmt.Errorf("persist signing secret: %w", werr)
	}
	return secret, nil
}
