// Package jwt issues and verifies HS256 session tokens and provides a bearer
// token middleware that stores the verified claims in the request context.
package jwt
