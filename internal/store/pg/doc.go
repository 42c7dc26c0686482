// Package pg is the Postgres persistence collaborator for authcore.
//
// [Store] implements [authcore.UserProvider] over database/sql with the
// pgx stdlib driver, and carries the registration and role administration
// writes the HTTP surface needs. Schema changes ship as embedded goose
// migrations applied by [Store.Migrate].
//
// Sessions never touch Postgres; they live in Redis behind the session
// package.
package pg
