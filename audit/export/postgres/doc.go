// Package postgres stores the engine's audit events in a PostgreSQL table
// through pgx.
//
// The sink takes any pgx executor, typically a *pgxpool.Pool. Write
// failures are logged and counted; they never reach the request path.
package postgres
