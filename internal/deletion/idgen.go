package deletion

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// newID returns a 16-hex-character opaque identifier, per spec §6's
// session_id/group_id format. Grounded on the teacher's
// deterministicID (sha256-then-truncate-to-8-bytes), but seeded from
// a random UUID rather than a content fingerprint, since session and
// group ids have no natural deterministic seed.
func newID() string {
	h := sha256.Sum256([]byte(uuid.NewString()))
	return hex.EncodeToString(h[:8])
}
