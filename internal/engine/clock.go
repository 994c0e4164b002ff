// ABOUTME: Injectable clock so expiry and retention are deterministic in tests

package engine

import "time"

// Clock returns the current time. Production engines use time.Now; tests
// inject a fake to step through expiry and retention windows.
type Clock func() time.Time
