// Package stores provides the run journal for rocmdev. It includes
// SQLite-based storage with WAL mode and CRUD operations for
// provisioning runs, per-resource action records, and cached host facts.
package stores
