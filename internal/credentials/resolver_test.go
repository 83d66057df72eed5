package credentials

import (
	"errors"
	"strings"
	"testing"
)

func TestEnvResolver_Complete(t *testing.T) {
	t.Setenv("KENNDUNK_ACCESS_KEY", "ak")
	t.Setenv("KENNDUNK_SECRET_KEY", "sk")
	t.Setenv("KENNDUNK_USER_ID", "uid")

	triple, err := EnvResolver{}.Lookup("KennDunk")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if triple.AccessKey != "ak" || triple.SecretKey != "sk" || triple.UserID != "uid" {
		t.Errorf("Lookup() = %+v, want ak/sk/uid", triple)
	}
}

func TestEnvResolver_MissingFieldsNamed(t *testing.T) {
	t.Setenv("YZMINING_ACCESS_KEY", "ak")
	// secret and user id deliberately unset

	_, err := EnvResolver{}.Lookup("YZMining")
	var missing *MissingCredentialError
	if !errors.As(err, &missing) {
		t.Fatalf("Lookup() error = %v, want MissingCredentialError", err)
	}
	if missing.Account != "YZMining" {
		t.Errorf("Account = %q, want YZMining", missing.Account)
	}
	if len(missing.Fields) != 2 {
		t.Fatalf("Fields = %v, want exactly 2 entries", missing.Fields)
	}
	if missing.Fields[0] != "YZMINING_SECRET_KEY" || missing.Fields[1] != "YZMINING_USER_ID" {
		t.Errorf("Fields = %v, want [YZMINING_SECRET_KEY YZMINING_USER_ID]", missing.Fields)
	}
	if !strings.Contains(missing.Error(), "YZMINING_SECRET_KEY") {
		t.Errorf("Error() = %q, should name the missing field", missing.Error())
	}
}

func TestEnvResolver_NoPartialSuccess(t *testing.T) {
	t.Setenv("SOLTERO_ACCESS_KEY", "ak")
	t.Setenv("SOLTERO_SECRET_KEY", "sk")

	triple, err := EnvResolver{}.Lookup("Soltero")
	if err == nil {
		t.Fatal("Lookup() error = nil, want MissingCredentialError")
	}
	if triple != (Triple{}) {
		t.Errorf("Lookup() returned partial triple %+v, want zero value", triple)
	}
}

func TestEnvPrefix_StripsNonAlphanumeric(t *testing.T) {
	cases := map[string]string{
		"50Shades":     "50SHADES",
		"pow-digital3": "POWDIGITAL3",
		"Mack 81":      "MACK81",
	}
	for in, want := range cases {
		if got := envPrefix(in); got != want {
			t.Errorf("envPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
