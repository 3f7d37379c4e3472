package config

type SigningConfig interface {
	GetSigningKeyID() string
	GetSigningPrivateKeyPEM() string
	GetSigningPublicKeyPEM() string
}

type Signing struct{}

var _ SigningConfig = Signing{}

func (Signing) GetSigningKeyID() string {
	return GetEnv("SIGNING_KEY_ID", "gateway-key-1")
}

// GetSigningPrivateKeyPEM returns the RS256 private key used to sign
// session and handoff tokens. Empty means "generate an ephemeral dev key
// at startup" - fine for a single replica, useless across restarts.
func (Signing) GetSigningPrivateKeyPEM() string {
	return GetEnv("SIGNING_PRIVATE_KEY_PEM", "")
}

func (Signing) GetSigningPublicKeyPEM() string {
	return GetEnv("SIGNING_PUBLIC_KEY_PEM", "")
}
