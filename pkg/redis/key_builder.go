package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building so staging and
// production gates never collide on shared infrastructure.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "edgegate:prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "edgegate:staging"
	}
	return &KeyBuilder{prefix: prefix}
}

// Prefix returns the current environment prefix
func (kb *KeyBuilder) Prefix() string {
	return kb.prefix
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// KeyBlacklist is the set holding denied client IPs.
func (kb *KeyBuilder) KeyBlacklist() string {
	return kb.BuildKey("blacklist")
}
