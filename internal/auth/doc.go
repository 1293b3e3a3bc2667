// Package auth provides JWT-based authentication for the HTTP API.
//
// Tokens are HS256-signed with the user ID in the "sub" claim. Middleware
// validates the Authorization bearer header and attaches the user ID to the
// request context; handlers read it back with UserIDFromContext. Password
// hashing for account registration uses bcrypt.
package auth
