// Package services defines the [Service] interface for streaming library
// accounts and implements it for Crunchyroll.
//
// # Service Interface
//
// A [Service] is one authenticated, profile-scoped session. Reads cover the
// watchlist, watch history, named lists, and star ratings; writes add items,
// assign ratings, and mark content watched. Synchronization logic works
// against the interface so it never depends on wire formats.
//
// # Sessions
//
// [CrunchyrollConnector.Login] performs the password grant, resolves the
// requested profile, and switches to a profile-scoped session via the
// refresh token. The returned session refreshes its access token through
// [oauth2.ReuseTokenSource] as it expires.
//
// # Pacing
//
// Paginated reads wait on a [rate.Limiter] before each page so full-library
// captures stay under the service's request ceiling. Writes are paced by the
// caller instead, since write spacing is a reconciliation concern.
//
// # Error Handling
//
// Failed API calls surface as [*APIError] with an [ErrorKind] assigned where
// the HTTP response is read:
//   - [KindConflict] : the resource already exists (409)
//   - [KindTransient] : retryable (429 and 5xx)
//   - [KindBlock] : the WAF refused the client (403 with an HTML body)
//   - [KindPermanent] : everything else
//
// [KindOf] recovers the kind from a wrapped error chain, falling back to
// message matching for plain transport errors.
package services
