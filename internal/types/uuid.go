package types

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_BILLING_CYCLE   = "bc"
	UUID_PREFIX_INVOICE         = "inv"
	UUID_PREFIX_PAYMENT         = "pay"
	UUID_PREFIX_PAYMENT_TOKEN   = "ptok"
	UUID_PREFIX_PAYMENT_ATTEMPT = "patt"
	UUID_PREFIX_EVENT           = "evt"
	UUID_PREFIX_AUDIT_LOG       = "blog"
	UUID_PREFIX_NOTIFICATION    = "ntf"
	UUID_PREFIX_SUBSCRIPTION    = "subs"
	UUID_PREFIX_BATCH_RUN       = "run"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// GenerateUUID returns a lexicographically sortable ULID string
func GenerateUUID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// GenerateUUIDWithPrefix returns "<prefix>_<ulid>"
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
