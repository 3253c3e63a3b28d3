package oids

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogRow struct {
	schema string
	name   string
	oid    uint32
}

type fakeConn struct {
	catalog  []catalogRow
	queries  int
	queryErr error
	closed   bool
}

func (f *fakeConn) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeConn) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.catalog}, nil
}

func (f *fakeConn) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.queries++
	oid, _ := args[0].(uint32)
	for _, row := range f.catalog {
		if row.oid == oid {
			return fakeRow{schema: row.schema, name: row.name}
		}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (f *fakeConn) Close(_ context.Context) error {
	f.closed = true
	return nil
}

type fakeRow struct {
	schema string
	name   string
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.schema
	*dest[1].(*string) = r.name
	return nil
}

type fakeRows struct {
	rows []catalogRow
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	*dest[0].(*string) = row.schema
	*dest[1].(*string) = row.name
	*dest[2].(*uint32) = row.oid
	return nil
}
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func testResolver(catalog ...catalogRow) (*Resolver, *fakeConn) {
	conn := &fakeConn{catalog: catalog}
	return newResolver(conn), conn
}

func TestResolve_CacheHit(t *testing.T) {
	r, conn := testResolver()
	r.cache[123] = "public.test"

	assert.Equal(t, "public.test", r.Resolve(context.Background(), 123))
	assert.Zero(t, conn.queries, "a cached oid must not touch the database")
}

func TestWarmUp(t *testing.T) {
	r, conn := testResolver(
		catalogRow{"public", "foo", 100},
		catalogRow{"bar", "baz", 200},
	)
	require.NoError(t, r.WarmUp(context.Background()))

	assert.Equal(t, "public.foo", r.cache[100])
	assert.Equal(t, "bar.baz", r.cache[200])

	assert.Equal(t, "public.foo", r.Resolve(context.Background(), 100))
	assert.Equal(t, 1, conn.queries, "warmed lookups are served from cache")
}

func TestWarmUp_QueryError(t *testing.T) {
	r, conn := testResolver()
	conn.queryErr = fmt.Errorf("connection reset")

	err := r.WarmUp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warm oid cache")
}

func TestResolve_FetchesAndCaches(t *testing.T) {
	r, conn := testResolver(catalogRow{"schema", "tbl", 456})

	assert.Equal(t, "schema.tbl", r.Resolve(context.Background(), 456))
	assert.Equal(t, "schema.tbl", r.cache[456])

	r.Resolve(context.Background(), 456)
	assert.Equal(t, 1, conn.queries)
}

func TestResolve_NotFound(t *testing.T) {
	r, _ := testResolver()

	assert.Equal(t, "Oid 789", r.Resolve(context.Background(), 789))
	_, cached := r.cache[789]
	assert.False(t, cached, "misses are not cached")
}

func TestClose(t *testing.T) {
	r, conn := testResolver()
	require.NoError(t, r.Close(context.Background()))
	assert.True(t, conn.closed)

	require.NoError(t, r.Close(context.Background()), "second close is a no-op")

	var nilResolver *Resolver
	assert.NoError(t, nilResolver.Close(context.Background()))
}

func TestLabel(t *testing.T) {
	ctx := context.Background()
	r, _ := testResolver(catalogRow{"public", "orders", 16384})

	var none *Resolver
	assert.Equal(t, "OID n/a", none.Label(ctx, 0))
	assert.Equal(t, "OID 16384", none.Label(ctx, 16384))

	assert.Equal(t, "OID n/a", r.Label(ctx, 0))
	assert.Equal(t, "public.orders (16384)", r.Label(ctx, 16384))
	assert.Equal(t, "Oid 99 (99)", r.Label(ctx, 99), "unresolvable oids keep the fallback name")
}

func TestLine(t *testing.T) {
	ctx := context.Background()
	r, _ := testResolver(catalogRow{"public", "orders", 16384})

	var none *Resolver
	assert.Equal(t, "", none.Line(ctx, "Rel", 0))
	assert.Equal(t, "Rel OID: 16384", none.Line(ctx, "Rel", 16384))

	assert.Equal(t, "", r.Line(ctx, "Rel", 0))
	assert.Equal(t, "Outer: public.orders (16384)", r.Line(ctx, "Outer", 16384))
}
