// Package blacklist provides the reputation store backing the gate's
// deny-list check. Membership is exact-string only; richer matching (CIDR,
// ASN, threat feeds) belongs to whatever replaces the Store implementation.
package blacklist

import "context"

// Store is the reputation set behind the gate's deny check. Lookups run on
// every request; Add and Remove are rare administrative operations and must
// not corrupt concurrent lookups. Entries never expire in the in-memory
// implementation, but implementations are free to attach TTLs.
type Store interface {
	Contains(ctx context.Context, ip string) (bool, error)
	Add(ctx context.Context, ip string) error
	Remove(ctx context.Context, ip string) error
}

// DefaultSeed is the curated starter set (TEST-NET addresses, safe to ship
// as examples).
var DefaultSeed = []string{
	"198.51.100.10",
	"198.51.100.20",
	"203.0.113.50",
}
