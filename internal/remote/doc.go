// Package remote implements the network collaborators of the session
// store over JSON/HTTP: the auth provider (live session check and remote
// sign-out) and the profile sync endpoint used by the resolver.
//
// All adapters share an HTTPClient that sets the bearer token, paces
// outbound calls with an optional rate limiter and maps error bodies to
// StatusError.
package remote
