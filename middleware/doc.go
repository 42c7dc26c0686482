// Package middleware adapts the authcore Engine to net/http.
//
// # Guards
//
//   - [Guard] authenticates the access token (bearer header or cookie) and
//     attaches the [authcore.UserContext] to the request context.
//   - [RequireRole] and [RequirePermission] run behind Guard and answer 403
//     when the identity lacks the role or permission.
//
// # Cookies
//
// [SetTokenCookies] and [ClearTokenCookies] manage the HttpOnly
// access_token and refresh_token cookies.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
package middleware
