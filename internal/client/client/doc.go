// Package client contains the capsulekeeper client's transport and local
// persistence bootstrap.
//
// # Overview
//
// The package provides:
//  1. The API contract the services depend on (AuthAPI, CapsuleAPI and their
//     union Client).
//  2. HTTPClient, a REST implementation that attaches the bearer token from a
//     TokenSource and a per-request id to every call, decodes JSON payloads,
//     and maps status codes onto the sentinel errors in package common.
//  3. InitDatabase and RunMigrations, which open the local SQLite database
//     and apply the embedded goose migrations.
//
// # Error Handling
//
// Non-2xx responses become *common.APIError carrying the server's "detail"
// text and unwrapping to a sentinel. How a status maps depends on the
// endpoint: a 401 from login is common.ErrInvalidCredentials, while a 401
// from an authenticated call is common.ErrUnauthorized. Transport failures
// wrap common.ErrNetwork and undecodable payloads wrap
// common.ErrMalformedResponse.
//
// HTTPClient is safe for concurrent use. All operations honor ctx.
package client
