package redis

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keyspace builds "<prefix>[:<scope>]:<kind>:<parts...>" keys. The zero value
// uses the default prefix and no scope.
type keyspace struct {
	prefix string
	scope  string
}

func newKeyspace(prefix, scope string) keyspace {
	return keyspace{prefix: strings.TrimSpace(prefix), scope: strings.TrimSpace(scope)}
}

func (k keyspace) index(sheet string) string { return k.build("index", sheet) }

func (k keyspace) lock(sheet string) string { return k.build("lock", sheet) }

// idempotency hashes the request scope; it carries a user id and a URL path
// that may contain characters awkward in key patterns.
func (k keyspace) idempotency(scope, id string) string {
	if scope = strings.TrimSpace(scope); scope != "" {
		sum := sha256.Sum256([]byte(scope))
		scope = hex.EncodeToString(sum[:8])
	}
	return k.build("idempotency", scope, id)
}

func (k keyspace) build(kind string, parts ...string) string {
	prefix := k.prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	out := []string{prefix}
	if k.scope != "" {
		out = append(out, k.scope)
	}
	out = append(out, kind)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ":")
}
