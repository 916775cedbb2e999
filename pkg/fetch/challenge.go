package fetch

import (
	"bytes"
	"errors"
	"fmt"
)

// ChallengeScanBytes is how much of a body is scanned for challenge markers.
const ChallengeScanBytes = 2000

var (
	// ErrChallenge marks an anti-automation interstitial served in place of content.
	ErrChallenge = errors.New("challenge page")

	// ErrShortBody marks a body too short to be real content.
	ErrShortBody = errors.New("response body too short")
)

var challengeMarkers = [][]byte{
	[]byte("Just a moment"),
	[]byte("Checking your browser"),
	[]byte("cf-browser-verification"),
}

// DetectChallenge reports whether body looks like a challenge page or is
// shorter than minBytes. Such responses count as failed fetches so they are
// retried and never cached.
func DetectChallenge(body []byte, minBytes int) error {
	if len(body) < minBytes {
		return fmt.Errorf("%w: %d bytes, want at least %d", ErrShortBody, len(body), minBytes)
	}

	head := body[:min(len(body), ChallengeScanBytes)]
	for _, marker := range challengeMarkers {
		if bytes.Contains(head, marker) {
			return fmt.Errorf("%w: found %q", ErrChallenge, marker)
		}
	}
	return nil
}
