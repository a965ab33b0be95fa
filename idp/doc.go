// Package idp connects goGuard to an identity provider.
//
// [Client] calls a remote provider over HTTP:
//
//	POST {base}/tenants/{tenant}/token/refresh   {"refresh_token": "..."}
//	GET  {base}/keys
//
// [Local] is an in-process provider backed by a jwt.Manager. It serves the
// same two endpoints through [Local.Handler], which makes it usable both as a
// development upstream and as a test double for Client.
package idp
