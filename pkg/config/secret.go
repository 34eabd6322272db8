package config

const redacted = "[REDACTED]"

// Secret is a string that keeps credentials such as storage passwords out
// of logs and serialized configuration. Its string and text forms are
// "[REDACTED]"; use [Secret.Value] for the real value.
type Secret string

// String returns "[REDACTED]".
func (s Secret) String() string {
	return redacted
}

// GoString returns "[REDACTED]" for %#v.
func (s Secret) GoString() string {
	return redacted
}

// Value returns the secret itself.
func (s Secret) Value() string {
	return string(s)
}

// MarshalText returns "[REDACTED]" so secrets never reach JSON or YAML
// output.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// UnmarshalText stores text as the secret.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
