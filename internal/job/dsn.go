package job

import (
	"fmt"
	"net/url"
	"strconv"

	"csvload/internal/secrets"
)

// BuildDSN renders the connection string a storage backend expects from a
// resolved profile. The DSN carries the password; it must never be logged.
func BuildDSN(kind string, p secrets.ConnectionProfile) (string, error) {
	switch kind {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(p.User, p.Password),
			Host:   hostPort(p.Host, p.Port),
			Path:   "/" + p.Database,
		}
		return u.String(), nil

	case "mssql":
		q := url.Values{}
		q.Set("database", p.Database)
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(p.User, p.Password),
			Host:     hostPort(p.Host, p.Port),
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	case "sqlite":
		// SQLite is file-backed; the profile's database field is the path
		// and the network fields are ignored.
		if p.Database == "" {
			return "", fmt.Errorf("job: sqlite profile has no database path")
		}
		return p.Database, nil

	default:
		return "", fmt.Errorf("job: no DSN rule for storage kind %q", kind)
	}
}

func hostPort(host string, port int) string {
	if port == 0 {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}
