// Package secrets resolves an opaque secret handle into database connection
// credentials.
//
// The package is responsible for:
//   - Fetching a secret payload from a Store (AWS Secrets Manager in
//     production, an in-memory store in tests).
//   - Parsing the JSON payload into a ConnectionProfile.
//   - Classifying failures as access errors (fetch denied / handle missing)
//     vs format errors (payload malformed).
//
// Credentials live only in memory for the duration of one run and are never
// logged; ConnectionProfile deliberately has no String method that would
// expose the password.
package secrets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ConnectionProfile holds the resolved database connection credentials.
// It is immutable once parsed; callers pass it by value.
type ConnectionProfile struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// FormatError reports a secret payload that could not be parsed into a
// ConnectionProfile: invalid JSON, a missing key, or a mistyped value.
type FormatError struct {
	Field string // offending key, empty when the whole payload is invalid
	Err   error
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("secret payload: %v", e.Err)
	}
	return fmt.Sprintf("secret payload: field %q: %v", e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// payload mirrors the wire shape of the secret. Port is declared as any so
// both 5432 and "5432" decode (the decoder runs with UseNumber, so a JSON
// number arrives as json.Number); anything else is rejected explicitly below.
type payload struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Host     *string `json:"host"`
	Port     any     `json:"port"`
	DBName   *string `json:"dbname"`
}

// ParseProfile parses a JSON secret payload with keys
// username, password, host, port, dbname into a ConnectionProfile.
//
// Rules:
//   - Every key is required; a missing or null key is a *FormatError.
//   - port may be a JSON number or a numeric string, and must land in
//     [0, 65535].
//   - String fields must be non-empty after trimming, except password,
//     which is taken verbatim (passwords may legitimately contain spaces).
func ParseProfile(raw []byte) (ConnectionProfile, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return ConnectionProfile{}, &FormatError{Err: err}
	}

	reqString := func(field string, v *string, trim bool) (string, error) {
		if v == nil {
			return "", &FormatError{Field: field, Err: fmt.Errorf("missing")}
		}
		s := *v
		if trim {
			s = strings.TrimSpace(s)
		}
		if s == "" {
			return "", &FormatError{Field: field, Err: fmt.Errorf("empty")}
		}
		return s, nil
	}

	user, err := reqString("username", p.Username, true)
	if err != nil {
		return ConnectionProfile{}, err
	}
	pass, err := reqString("password", p.Password, false)
	if err != nil {
		return ConnectionProfile{}, err
	}
	host, err := reqString("host", p.Host, true)
	if err != nil {
		return ConnectionProfile{}, err
	}
	db, err := reqString("dbname", p.DBName, true)
	if err != nil {
		return ConnectionProfile{}, err
	}

	var portStr string
	switch v := p.Port.(type) {
	case nil:
		return ConnectionProfile{}, &FormatError{Field: "port", Err: fmt.Errorf("missing")}
	case json.Number:
		portStr = v.String()
	case string:
		portStr = v
	default:
		return ConnectionProfile{}, &FormatError{Field: "port", Err: fmt.Errorf("must be a number or numeric string, got %T", v)}
	}
	port, err := parsePort(portStr)
	if err != nil {
		return ConnectionProfile{}, &FormatError{Field: "port", Err: err}
	}

	return ConnectionProfile{
		Host:     host,
		Port:     port,
		User:     user,
		Password: pass,
		Database: db,
	}, nil
}

func parsePort(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	if n < 0 || n > 65535 {
		return 0, fmt.Errorf("out of range [0,65535]: %d", n)
	}
	return n, nil
}
