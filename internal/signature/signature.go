// Package signature derives stable fingerprints for channel posts.
// The fingerprint is the key used by the history store to suppress
// duplicate reposts across runs, so it must be fully deterministic:
// no randomness and no machine-dependent state.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// textPrefixRunes limits how much of the post text participates in the
// fingerprint. Edits beyond the first 100 runes do not produce a new post.
const textPrefixRunes = 100

// ForPost computes the fingerprint of a post from its source channel,
// message id, publication time and leading text. The text argument is the
// post's caption-or-text; pass an empty string when the post has neither.
func ForPost(channelID int64, messageID int, date time.Time, text string) string {
	prefix := []rune(text)
	if len(prefix) > textPrefixRunes {
		prefix = prefix[:textPrefixRunes]
	}

	payload := fmt.Sprintf("%d_%d_%s_%s",
		channelID,
		messageID,
		date.UTC().Format(time.RFC3339),
		string(prefix),
	)

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
