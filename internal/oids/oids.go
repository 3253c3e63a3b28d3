// Package oids resolves relation OIDs to schema-qualified names via a live
// PostgreSQL connection. Traces carry bare OIDs; resolution is optional and
// every formatting helper tolerates a nil resolver.
package oids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the slice of pgx.Conn the resolver needs. Tests substitute a
// fake; production code always passes a *pgx.Conn.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

const (
	warmQuery = `SELECT n.nspname, c.relname, c.oid
FROM pg_class c
JOIN pg_namespace n ON c.relnamespace = n.oid`

	lookupQuery = `SELECT n.nspname, c.relname
FROM pg_class c
JOIN pg_namespace n ON c.relnamespace = n.oid
WHERE c.oid = $1`
)

// Resolver caches OID-to-name lookups for one database.
// Not safe for concurrent use; rendering is single-threaded.
type Resolver struct {
	conn  querier
	cache map[uint32]string
}

// Connect opens a read-only session against url.
func Connect(ctx context.Context, url string) (*Resolver, error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect for oid resolution: %w", err)
	}
	if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("set read-only session: %w", err)
	}
	slog.Debug("oid resolver connected")
	return newResolver(conn), nil
}

func newResolver(conn querier) *Resolver {
	return &Resolver{conn: conn, cache: make(map[uint32]string)}
}

// WarmUp bulk-loads the whole relation catalog into the cache, so rendering
// a large trace does one round trip instead of one per node.
func (r *Resolver) WarmUp(ctx context.Context) error {
	rows, err := r.conn.Query(ctx, warmQuery)
	if err != nil {
		return fmt.Errorf("warm oid cache: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var schema, name string
		var oid uint32
		if err := rows.Scan(&schema, &name, &oid); err != nil {
			return fmt.Errorf("warm oid cache: %w", err)
		}
		r.cache[oid] = schema + "." + name
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("warm oid cache: %w", err)
	}
	slog.Debug("oid cache warmed", "relations", n)
	return nil
}

// Resolve returns the schema-qualified name for oid, or "Oid <n>" when the
// catalog has no such relation. Successful lookups are cached.
func (r *Resolver) Resolve(ctx context.Context, oid uint32) string {
	if name, ok := r.cache[oid]; ok {
		return name
	}

	var schema, name string
	err := r.conn.QueryRow(ctx, lookupQuery, oid).Scan(&schema, &name)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("oid lookup failed", "oid", oid, "error", err)
		}
		return fmt.Sprintf("Oid %d", oid)
	}

	qualified := schema + "." + name
	r.cache[oid] = qualified
	return qualified
}

// Close releases the connection. Safe on a nil resolver.
func (r *Resolver) Close(ctx context.Context) error {
	if r == nil || r.conn == nil {
		return nil
	}
	err := r.conn.Close(ctx)
	r.conn = nil
	return err
}

// Label formats an OID for cluster labels: "OID n/a" for zero,
// "name (oid)" when resolvable, "OID <n>" without a resolver.
func (r *Resolver) Label(ctx context.Context, oid uint32) string {
	if oid == 0 {
		return "OID n/a"
	}
	if r == nil {
		return fmt.Sprintf("OID %d", oid)
	}
	return fmt.Sprintf("%s (%d)", r.Resolve(ctx, oid), oid)
}

// Line formats an OID for a node label line, prefixed with the role the
// relation plays ("Rel", "Outer", "Inner"). Zero yields an empty string so
// callers can skip the line entirely.
func (r *Resolver) Line(ctx context.Context, role string, oid uint32) string {
	if oid == 0 {
		return ""
	}
	if r == nil {
		return fmt.Sprintf("%s OID: %d", role, oid)
	}
	return fmt.Sprintf("%s: %s (%d)", role, r.Resolve(ctx, oid), oid)
}
