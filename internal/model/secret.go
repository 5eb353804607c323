package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SecretKind tells how a stored secret value must be interpreted.
type SecretKind string

const (
	SecretPlaintext SecretKind = "plaintext"
	SecretEncrypted SecretKind = "encrypted"
)

// Secret is a credential value that is either plaintext or ciphertext
// produced by the configured encryption key.
//
// On disk a Secret is written as a single-key mapping naming its kind:
//
//	password:
//	  encrypted: "base64..."
//
// Older configuration files store bare strings; those are classified by
// ClassifySecret when loaded.
type Secret struct {
	Kind  SecretKind
	Value string
}

// Plaintext returns a plaintext secret.
func Plaintext(v string) *Secret {
	return &Secret{Kind: SecretPlaintext, Value: v}
}

// Encrypted returns a secret holding ciphertext.
func Encrypted(v string) *Secret {
	return &Secret{Kind: SecretEncrypted, Value: v}
}

// IsEncrypted reports whether s holds ciphertext.
func (s *Secret) IsEncrypted() bool {
	return s != nil && s.Kind == SecretEncrypted
}

// Clone returns a copy of s.
func (s *Secret) Clone() *Secret {
	if s == nil {
		return nil
	}

	out := *s

	return &out
}

// String masks the value so secrets never end up in logs.
func (s *Secret) String() string {
	if s == nil {
		return "<none>"
	}

	return fmt.Sprintf("<%s secret>", s.Kind)
}

// LooksLikeKeyMaterial reports whether v is PEM/OpenSSH private key content
// rather than a path or ciphertext.
func LooksLikeKeyMaterial(v string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), "-----BEGIN") || strings.Contains(v, "\n")
}

// ClassifySecret decides the kind of an untagged value read from a legacy
// configuration file. It is a compatibility shim: key material (a PEM header
// or any newline) is plaintext and anything else is assumed to be ciphertext.
// Passwords classified as ciphertext that later fail to decrypt are used as
// plaintext by the sync engine.
func ClassifySecret(v string) SecretKind {
	if LooksLikeKeyMaterial(v) {
		return SecretPlaintext
	}

	return SecretEncrypted
}

// MarshalYAML writes the tagged form.
func (s Secret) MarshalYAML() (any, error) {
	return map[string]string{string(s.Kind): s.Value}, nil
}

// UnmarshalYAML accepts the tagged mapping form and legacy bare strings.
func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}

		s.Kind = ClassifySecret(v)
		s.Value = v

		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}

		if len(m) != 1 {
			return fmt.Errorf("secret at line %d: expected exactly one of %q or %q", node.Line, SecretPlaintext, SecretEncrypted)
		}

		for k, v := range m {
			switch SecretKind(k) {
			case SecretPlaintext, SecretEncrypted:
				s.Kind = SecretKind(k)
				s.Value = v
			default:
				return fmt.Errorf("secret at line %d: unknown kind %q", node.Line, k)
			}
		}

		return nil
	default:
		return fmt.Errorf("secret at line %d: unexpected YAML node", node.Line)
	}
}
