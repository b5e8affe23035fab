// Package vue provides an HTTP client for the Emporia Vue cloud API.
//
// The vue package abstracts the Emporia cloud endpoints, providing methods to
// list the devices on an account and to fetch per-channel usage for a set of
// devices. Requests are authenticated with a Cognito ID token obtained from
// the Emporia user pool; the Authenticator caches tokens and refreshes them
// before they expire.
package vue
