package secrets

import (
	"errors"
	"testing"
)

func TestParseProfile_ValidPayload(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"username":"loader","password":"s3cr3t","host":"db.internal","port":5432,"dbname":"warehouse"}`)

	p, err := ParseProfile(raw)
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if p.User != "loader" || p.Password != "s3cr3t" || p.Host != "db.internal" || p.Database != "warehouse" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Port != 5432 {
		t.Fatalf("expected port 5432, got %d", p.Port)
	}
}

func TestParseProfile_PortAsNumericString(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"username":"u","password":"p","host":"h","port":"1433","dbname":"d"}`)

	p, err := ParseProfile(raw)
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if p.Port != 1433 {
		t.Fatalf("expected port 1433, got %d", p.Port)
	}
}

func TestParseProfile_PasswordKeptVerbatim(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"username":"u","password":" pa ss ","host":"h","port":1,"dbname":"d"}`)

	p, err := ParseProfile(raw)
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if p.Password != " pa ss " {
		t.Fatalf("password must not be trimmed, got %q", p.Password)
	}
}

func TestParseProfile_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		raw       string
		wantField string
	}{
		{"not json", `nope`, ""},
		{"missing username", `{"password":"p","host":"h","port":1,"dbname":"d"}`, "username"},
		{"missing password", `{"username":"u","host":"h","port":1,"dbname":"d"}`, "password"},
		{"missing host", `{"username":"u","password":"p","port":1,"dbname":"d"}`, "host"},
		{"missing port", `{"username":"u","password":"p","host":"h","dbname":"d"}`, "port"},
		{"missing dbname", `{"username":"u","password":"p","host":"h","port":1}`, "dbname"},
		{"null host", `{"username":"u","password":"p","host":null,"port":1,"dbname":"d"}`, "host"},
		{"empty username", `{"username":"  ","password":"p","host":"h","port":1,"dbname":"d"}`, "username"},
		{"port not numeric", `{"username":"u","password":"p","host":"h","port":"abc","dbname":"d"}`, "port"},
		{"port wrong type", `{"username":"u","password":"p","host":"h","port":true,"dbname":"d"}`, "port"},
		{"port fractional", `{"username":"u","password":"p","host":"h","port":54.3,"dbname":"d"}`, "port"},
		{"port out of range", `{"username":"u","password":"p","host":"h","port":70000,"dbname":"d"}`, "port"},
		{"port negative", `{"username":"u","password":"p","host":"h","port":-1,"dbname":"d"}`, "port"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tc.raw))
			if err == nil {
				t.Fatalf("expected error")
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FormatError, got %T: %v", err, err)
			}
			if fe.Field != tc.wantField {
				t.Fatalf("expected field %q, got %q", tc.wantField, fe.Field)
			}
		})
	}
}
