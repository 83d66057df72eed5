package credentials

import (
	"fmt"
	"os"
	"strings"
)

// Triple is the credential set one account needs to call the pool API.
type Triple struct {
	AccessKey string
	SecretKey string
	UserID    string
}

// MissingCredentialError reports exactly which fields were absent for an
// account. An account with any missing field is excluded from the run.
type MissingCredentialError struct {
	Account string
	Fields  []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credentials for %s: %s", e.Account, strings.Join(e.Fields, ", "))
}

// Resolver maps an account name to its credential triple. The orchestrator
// depends only on this capability, not on any one secret store.
type Resolver interface {
	Lookup(account string) (Triple, error)
}

// EnvResolver reads credentials from environment variables named
// <ACCOUNT>_ACCESS_KEY, <ACCOUNT>_SECRET_KEY and <ACCOUNT>_USER_ID,
// where <ACCOUNT> is the account name uppercased with non-alphanumeric
// characters removed.
type EnvResolver struct{}

func (EnvResolver) Lookup(account string) (Triple, error) {
	prefix := envPrefix(account)

	t := Triple{
		AccessKey: os.Getenv(prefix + "_ACCESS_KEY"),
		SecretKey: os.Getenv(prefix + "_SECRET_KEY"),
		UserID:    os.Getenv(prefix + "_USER_ID"),
	}

	var missing []string
	if t.AccessKey == "" {
		missing = append(missing, prefix+"_ACCESS_KEY")
	}
	if t.SecretKey == "" {
		missing = append(missing, prefix+"_SECRET_KEY")
	}
	if t.UserID == "" {
		missing = append(missing, prefix+"_USER_ID")
	}
	if len(missing) > 0 {
		return Triple{}, &MissingCredentialError{Account: account, Fields: missing}
	}
	return t, nil
}

func envPrefix(account string) string {
	var b strings.Builder
	for _, r := range account {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}
