// Package model defines the data structures used throughout gitsafe.
//
// The types here are persisted verbatim in the YAML configuration file and
// are shared by the sync engine, the retry policy and the command layer.
//
// # Repository
//
// A [Repository] is a remote that gitsafe mirrors into its archive
// directory. Its sync bookkeeping fields (LastSync, LastSyncCommitHash,
// Error, Size, AttemptsLeft) are written only by the sync path.
//
// # Credential
//
// A [Credential] holds a username plus a password and/or an SSH private key.
// Each secret is a [Secret], a tagged value that records whether the stored
// text is plaintext or ciphertext. Credentials are built with
// [NewCredential], which rejects a credential without any secret.
//
// # Config
//
// [Config] is the aggregate root: server, storage and scheduler settings
// together with every repository, credential and user.
package model
