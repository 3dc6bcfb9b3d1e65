// Package credentials holds the static username/secret table the server
// checks USER/PASS pairs against.
package credentials

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Table is an immutable username to secret map. A secret starting with
// "$2" is a bcrypt hash; anything else is compared as plaintext.
//
// A Table is safe for concurrent use.
type Table struct {
	secrets map[string]string
}

// New copies users into a new Table.
func New(users map[string]string) *Table {
	secrets := make(map[string]string, len(users))
	for name, secret := range users {
		secrets[name] = secret
	}
	return &Table{secrets: secrets}
}

// Merge returns a new Table with the entries of t and other. Entries of
// other win on duplicate names.
func (t *Table) Merge(other *Table) *Table {
	merged := New(t.secrets)
	for name, secret := range other.secrets {
		merged.secrets[name] = secret
	}
	return merged
}

// Len returns the number of users.
func (t *Table) Len() int {
	return len(t.secrets)
}

// Verify reports whether pass is the secret of user. Unknown users and
// empty passwords never verify.
func (t *Table) Verify(user, pass string) bool {
	secret, ok := t.secrets[user]
	if !ok || pass == "" {
		return false
	}
	if isBcrypt(secret) {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(pass)) == 1
}

func isBcrypt(secret string) bool {
	return strings.HasPrefix(secret, "$2")
}
