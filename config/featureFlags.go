package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CarryForwardRequiresCompletion restricts carry-forward to predecessors that were completed.
// By default a period's closing balance seeds the next opening even while the predecessor is still a draft.
//
// Set via env:
// - CARRY_FORWARD_REQUIRES_COMPLETION=true
func CarryForwardRequiresCompletion() bool {
	return boolFromEnv("CARRY_FORWARD_REQUIRES_COMPLETION")
}

// LockRequiresCompletion enforces locked => completed. Off by default: a draft ledger may be locked directly.
//
// Set via env:
// - LOCK_REQUIRES_COMPLETION=true
func LockRequiresCompletion() bool {
	return boolFromEnv("LOCK_REQUIRES_COMPLETION")
}

// AllowDefaultRates lets consumption sync run on the fixed default rates when a period has no RateConfig.
// Report generation always requires a RateConfig.
//
// Set via env:
// - ALLOW_DEFAULT_RATES=true
func AllowDefaultRates() bool {
	return boolFromEnv("ALLOW_DEFAULT_RATES")
}

func ReportCacheEnabled() bool {
	return boolFromEnv("ENABLE_REPORT_CACHE")
}

// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
func ReportCacheTTL() time.Duration {
	ttl := 120
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}
