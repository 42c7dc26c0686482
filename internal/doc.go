// Package internal holds helpers private to authcore.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: orchestrators for every Engine operation
//   - config: environment loading for the server binary
//   - store/pg: Postgres user/role collaborator
//   - throttle: Redis failed-login counters used by httpapi
//   - httpapi: the HTTP surface used by cmd/authcore-server
package internal
