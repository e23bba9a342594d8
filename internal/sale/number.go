package sale

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PrefixSale   = "SALE"
	PrefixReturn = "RET"
)

// NewNumber returns a human-readable sale number of the form
// PREFIX-<unix millis>-<20 hex chars>. The suffix comes from a random UUID and
// carries 74 random bits; the unique index on sale_number backs it up.
func NewNumber(prefix string, at time.Time) string {
	id := uuid.New()
	suffix := strings.ToUpper(hex.EncodeToString(id[:10]))
	return fmt.Sprintf("%s-%d-%s", prefix, at.UnixMilli(), suffix)
}
