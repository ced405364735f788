package xid

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// New returns a lexically sortable identifier such as "ord-01HZX3...".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, ulid.Make().String())
}
