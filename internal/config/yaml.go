package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultYAML is the commented template written by `hijo config init`.
const DefaultYAML = `# hijo configuration
# Every key can be overridden with an environment variable, e.g.
# HIJO_AUTH_JWT_SECRET or HIJO_DATABASE_DSN.

mode: production          # development shows raw error detail to clients

log:
  level: info             # debug, info, warn, error
  format: text            # text or json

server:
  host: 0.0.0.0
  port: 3000
  shutdown_timeout: 30s
  cors_origins:
    - "*"
  body_limit: 10240       # bytes accepted for JSON and form bodies
  trust_proxy: false      # read client IPs from X-Forwarded-For

database:
  driver: sqlite          # sqlite, mysql or postgres
  dsn: hijo.db            # e.g. user:pass@tcp(localhost:3306)/hijo
  max_open_conns: 10
  max_idle_conns: 2
  conn_max_idle_time: 10s
  op_timeout: 30s
  retry_attempts: 3

auth:
  jwt_secret: ""          # set via HIJO_AUTH_JWT_SECRET
  token_ttl: 2160h        # 90 days

upload:
  max_size: 5242880       # 5 MiB
  backend: local          # local or s3
  dir: uploads
  s3:
    bucket: ""
    region: us-east-1
    endpoint: ""
    access_key: ""
    secret_key: ""

mail:
  enabled: false
  host: ""
  port: 465               # 465 uses implicit TLS, other ports STARTTLS when offered
  username: ""
  password: ""            # set via HIJO_MAIL_PASSWORD
  from: ""
  from_name: Hijo Electricity Website
  admin_address: ""
  timeout: 30s

ratelimit:
  redis_addr: ""          # share counters between replicas, e.g. localhost:6379

janitor:
  schedule: "@every 6h"
  grace: 1h

metrics:
  enabled: true
`

// WriteDefault writes DefaultYAML to path. It refuses to overwrite an
// existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, []byte(DefaultYAML), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// secretKeys are masked by RenderYAML.
var secretKeys = [][]string{
	{"auth", "jwt_secret"},
	{"mail", "password"},
	{"upload", "s3", "secret_key"},
	{"ratelimit", "redis_password"},
}

// RenderYAML returns the effective settings map (as produced by
// viper.AllSettings) as YAML with secrets masked.
func RenderYAML(all map[string]interface{}) ([]byte, error) {
	for _, path := range secretKeys {
		maskPath(all, path)
	}
	if db, ok := all["database"].(map[string]interface{}); ok {
		if dsn, ok := db["dsn"].(string); ok {
			db["dsn"] = maskDSN(dsn)
		}
	}

	out, err := yaml.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

func maskPath(m map[string]interface{}, path []string) {
	for i, key := range path {
		if i == len(path)-1 {
			if v, ok := m[key].(string); ok {
				m[key] = mask(v)
			}
			return
		}
		next, ok := m[key].(map[string]interface{})
		if !ok {
			return
		}
		m = next
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// maskDSN hides the password portion of user:pass@host style DSNs.
func maskDSN(dsn string) string {
	at := -1
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] == '@' {
			at = i
			break
		}
	}
	if at < 0 {
		return dsn
	}
	userinfo := dsn[:at]
	for i := 0; i < len(userinfo); i++ {
		if userinfo[i] == ':' && !(i+2 < len(userinfo) && userinfo[i+1] == '/' && userinfo[i+2] == '/') {
			return userinfo[:i+1] + "********" + dsn[at:]
		}
	}
	return dsn
}
