// Package core is the repository manager: it owns the sync path shared by the
// scheduler and manual triggers, and the repository, credential and user
// operations that mutate the shared configuration.
//
// Every mutation follows the same shape: take the configuration write lock,
// validate, mutate, clone, release, then hand the clone to the persister.
// Network and disk work never happens under the lock.
package core
