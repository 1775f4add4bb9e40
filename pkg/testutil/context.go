package testutil

import (
	"net/http"

	id "senderguard/pkg/domain"
	"senderguard/pkg/requestcontext"
)

// WithActor stamps req with the actor the auth middleware would have
// resolved from a bearer token. A malformed actorID leaves req anonymous,
// which is how handler tests exercise the Unauthorized path.
func WithActor(req *http.Request, actorID string, role id.Role) *http.Request {
	actor, err := id.ParseUserID(actorID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActor(req.Context(), actor, role))
}
