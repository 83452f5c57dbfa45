// Package auth decides who is calling and whether they may mutate a bug.
//
// A Pipeline runs per request:
//
//   - DevAuthenticator (only when the pipeline is built with Production=false)
//     attaches a well-known development identity to requests that carry no
//     bearer token, and stamps a freshly minted token onto the request.
//   - Authenticator resolves "Authorization: Bearer <token>" to a stored user
//     and attaches it to the request's RequestState.
//
// Handlers then call AuthorizeOwner before updating or deleting a bug.
//
// Every authentication failure is ErrUnauthenticated (401); ownership failures
// are ErrForbidden (403). Malformed, forged and expired tokens are
// indistinguishable to the caller.
package auth
