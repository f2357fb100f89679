// Package cli provides the interactive capsulekeeper command-line client.
//
// It wires configuration, the local token store, the REST API client and the
// client services into a small REPL. On start the stored session token, if
// any, is validated against the server; the user then signs up, verifies an
// email address, logs in with a password or a one-time code, recovers a
// forgotten password and works with capsules.
//
// Key features:
//   - signup / verify / resend: account creation and email verification
//   - login / otp / recover / logout / whoami: session handling
//   - list / show / watch: browsing capsules and counting down to unlock
//   - create / update / delete: capsule management
//   - upload / url / fetch / rmmedia: media attached to capsules
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
