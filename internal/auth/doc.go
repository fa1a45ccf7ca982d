// Package auth handles password registration and login and issues JWT bearer
// sessions. Hasher also serves password re-verification for confirmed
// cancellations.
package auth
