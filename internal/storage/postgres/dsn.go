package postgres

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ValidateDSN 校验 POSTGRES_DSN。接受 postgres:// URI 与 pgx 的 key=value 形式；
// 返回的错误不包含口令。
func ValidateDSN(dsn string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return fmt.Errorf("empty postgres dsn")
	}

	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return fmt.Errorf("invalid postgres dsn uri")
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("postgres dsn uri must use postgres:// or postgresql:// (got %q)", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("postgres dsn missing host")
		}
		if strings.TrimPrefix(u.Path, "/") == "" {
			return fmt.Errorf("postgres dsn missing database name")
		}
		return nil
	}

	if !strings.Contains(dsn, "=") {
		return fmt.Errorf("postgres dsn must be a URI or key=value pairs")
	}
	cfg, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("invalid postgres dsn key=value form")
	}
	if cfg.Database == "" {
		return fmt.Errorf("postgres dsn missing dbname")
	}
	return nil
}

// RedactDSN 隐去口令，用于日志
func RedactDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "<invalid>"
		}
		return u.Redacted()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && k == "password" {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
