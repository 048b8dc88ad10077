package geo

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// RolloutSampler is a percentage-based per-request gate used to gradually
// enable enrichment across traffic. Routing is deterministic: the same IP
// always gets the same decision for a given percentage.
type RolloutSampler struct {
	percentage int
}

// NewRolloutSampler creates a sampler. percentage must be 0-100.
func NewRolloutSampler(percentage int) (*RolloutSampler, error) {
	if percentage < 0 || percentage > 100 {
		return nil, fmt.Errorf("rollout percentage must be 0-100, got %d", percentage)
	}
	return &RolloutSampler{percentage: percentage}, nil
}

// Include reports whether enrichment should be attempted for this IP.
func (s *RolloutSampler) Include(ip string) bool {
	if s.percentage >= 100 {
		return true
	}
	if s.percentage <= 0 {
		return false
	}
	sum := sha256.Sum256([]byte(ip))
	bucket := binary.BigEndian.Uint32(sum[:4]) % 100
	return int(bucket) < s.percentage
}
