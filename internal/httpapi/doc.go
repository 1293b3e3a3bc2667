// Package httpapi exposes the JSON API consumed by the dashboard.
//
// Endpoints cover account registration and login, session status and
// pairing, explicit logout, paginated message history, and AI auto-reply
// configuration. All chat endpoints require a bearer token minted by the
// auth package. Responses share a {success, message, data} envelope.
package httpapi
