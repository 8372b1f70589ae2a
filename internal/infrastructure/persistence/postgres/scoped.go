package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/possync/pkg/errors"
)

// The security scope is a session attribute consumed by the row-level
// security policies: app.tenant_id restricts tenant-scoped connections to
// their own rows, app.is_admin bypasses the filter for cross-tenant reads
// and writes. The scope is set exactly once, inside the factory, before the
// handle is handed out; neither handle type exports a way to change it.
// Close resets both GUCs before the connection returns to the pool, so a
// reused pooled connection never carries a stale binding.

// TenantConn is a store connection bound to exactly one tenant. Every
// statement issued through it is filtered to that tenant's rows.
type TenantConn struct {
	conn     *pgxpool.Conn
	tenantID string
	closed   bool
}

// AdminConn is a store connection with the cross-tenant admin scope.
type AdminConn struct {
	conn   *pgxpool.Conn
	closed bool
}

// OpenTenantScoped acquires a connection and binds it to tenantID before
// returning. The returned handle is the only way to write posture rows.
func (s *Store) OpenTenantScoped(ctx context.Context, tenantID string) (*TenantConn, error) {
	if tenantID == "" {
		return nil, errors.ErrValidation("tenant id is required for a tenant-scoped connection")
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.ErrTransient("failed to acquire store connection").WithCause(err)
	}

	// Scope must be the first statement on the session.
	_, err = conn.Exec(ctx,
		`SELECT set_config('app.tenant_id', $1, false), set_config('app.is_admin', 'false', false)`,
		tenantID,
	)
	if err != nil {
		conn.Release()
		return nil, errors.ErrTransient("failed to set tenant scope").WithCause(err)
	}

	return &TenantConn{conn: conn, tenantID: tenantID}, nil
}

// OpenAdminScoped acquires a connection with the cross-tenant admin scope.
// Used by the registry reader and the index rebuilder only.
func (s *Store) OpenAdminScoped(ctx context.Context) (*AdminConn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.ErrTransient("failed to acquire store connection").WithCause(err)
	}

	_, err = conn.Exec(ctx,
		`SELECT set_config('app.tenant_id', '', false), set_config('app.is_admin', 'true', false)`,
	)
	if err != nil {
		conn.Release()
		return nil, errors.ErrTransient("failed to set admin scope").WithCause(err)
	}

	return &AdminConn{conn: conn}, nil
}

// TenantID returns the tenant this connection is bound to.
func (c *TenantConn) TenantID() string {
	return c.tenantID
}

// Close resets the session scope and releases the connection. It is safe to
// call more than once and must run on every exit path.
func (c *TenantConn) Close(ctx context.Context) {
	if c.closed {
		return
	}
	c.closed = true
	releaseScoped(ctx, c.conn)
}

// Close resets the session scope and releases the connection.
func (c *AdminConn) Close(ctx context.Context) {
	if c.closed {
		return
	}
	c.closed = true
	releaseScoped(ctx, c.conn)
}

func releaseScoped(ctx context.Context, conn *pgxpool.Conn) {
	// Best effort: if the reset fails the connection is destroyed rather
	// than returned to the pool with a live scope.
	_, err := conn.Exec(ctx, `RESET ALL`)
	if err != nil {
		conn.Conn().Close(ctx)
	}
	conn.Release()
}

func (c *TenantConn) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.closed {
		return pgconn.CommandTag{}, errors.ErrInternal("use of closed tenant-scoped connection")
	}
	return c.conn.Exec(ctx, sql, args...)
}

func (c *AdminConn) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.closed {
		return nil, errors.ErrInternal("use of closed admin-scoped connection")
	}
	return c.conn.Query(ctx, sql, args...)
}

func (c *AdminConn) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.closed {
		return pgconn.CommandTag{}, errors.ErrInternal("use of closed admin-scoped connection")
	}
	return c.conn.Exec(ctx, sql, args...)
}
