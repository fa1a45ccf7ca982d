// Package account defines the Account entity, its payment statuses and the
// stores that persist it. Writes go through Store.WithLock, which serializes
// concurrent changes to the same account.
package account
