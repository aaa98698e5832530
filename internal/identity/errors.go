package identity

import (
	"errors"
	"strings"
)

// Message recovers the provider's human-readable message from a client
// error. Client errors carry the provider text as a prefix with the sentinel
// chained behind it; the sentinel suffix is trimmed so the message can be
// shown to users as the provider wrote it.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if u := errors.Unwrap(err); u != nil {
		msg = strings.TrimSuffix(msg, ": "+u.Error())
	}
	return msg
}
