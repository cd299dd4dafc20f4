package testutil

import (
	"net/http"
	"time"

	id "turf/pkg/domain"
	"turf/pkg/requestcontext"
)

// WithParty injects an authenticated party into the request context,
// simulating what the auth middleware does for valid bearer tokens.
func WithParty(req *http.Request, partyID id.PartyID) *http.Request {
	return req.WithContext(requestcontext.WithPartyID(req.Context(), partyID))
}

// WithFrozenTime pins the request-scoped clock so TTL behavior is
// deterministic in tests.
func WithFrozenTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
