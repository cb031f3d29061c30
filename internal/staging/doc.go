// Package staging sweeps the staging directory where share hand-offs and
// preview files are written.
//
// The share facility may read a staged file after the send call returns, so
// files are never removed on send. Commands sweep entries older than a cutoff
// at startup instead.
package staging
