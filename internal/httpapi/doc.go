// Package httpapi is the authcore demo HTTP surface: registration, login,
// refresh, logout, account views and role administration under /api/v1.
//
// Tokens travel both in the JSON body and as HttpOnly cookies set by the
// middleware package, so browser and API clients share one set of routes.
package httpapi
