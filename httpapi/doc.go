// Package httpapi exposes a goGuard.Engine over HTTP with chi.
//
// Public routes:
//
//	GET  /healthz
//	POST /auth/refresh    {"tenant_id", "user_id", "refresh_token"}
//
// Refresh calls pass through middleware.Gate and the per-user token_refresh
// limit before reaching the engine.
//
// Operator routes, mounted only when Options.AdminToken is set and guarded
// by the X-Admin-Token header:
//
//	POST   /auth/failures                             {"category", "identifier"}
//	GET    /admin/ratelimit/{category}/{identifier}
//	DELETE /admin/ratelimit/{category}/{identifier}   (X-Admin-ID required)
//	GET    /admin/blocked-ips
//	PUT    /admin/blocked-ips/{ip}                    {"ttl_seconds"}
//	DELETE /admin/blocked-ips/{ip}
//	GET    /admin/locked-accounts
//	PUT    /admin/locked-accounts/{userID}            {"ttl_seconds"}
//	DELETE /admin/locked-accounts/{userID}
//	GET    /admin/security-report
//	GET    /admin/metrics                             (when Options.Metrics is set)
package httpapi
