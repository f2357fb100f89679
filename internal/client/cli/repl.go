package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Signup(ctx context.Context) error
	Verify(ctx context.Context, args []string) error
	Resend(ctx context.Context) error
	Login(ctx context.Context) error
	LoginOTP(ctx context.Context) error
	Recover(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error

	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Watch(ctx context.Context, args []string) error
	Create(ctx context.Context) error
	Update(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error

	Upload(ctx context.Context, args []string) error
	MediaURL(ctx context.Context, args []string) error
	Fetch(ctx context.Context, args []string) error
	DeleteMedia(ctx context.Context, args []string) error
}

const (
	guestHelp = `Available commands:
  signup                      create an account
  verify [code]               confirm your email address
  resend                      send a new verification code
  login                       log in with email and password
  otp                         log in with a one-time code sent by email
  recover                     reset a forgotten password
  help, exit`

	userHelp = `Available commands:
  (l)ist                      list your capsules
  show <id>                   show a capsule and its media
  watch <id>                  count down to a capsule's unlock
  create                      create a capsule
  update <id>                 edit a locked capsule
  delete <id>                 delete a capsule
  upload <id> <file>          attach a file to a locked capsule
  url <id> <media-id>         print a short-lived link to media
  fetch <id> <media-id>       download media to the download dir
  rmmedia <id> <media-id>     remove media from a locked capsule
  whoami                      show the current user
  logout                      end the session
  help, exit`
)

// runREPL starts a simple read–eval–print loop for the capsulekeeper CLI.
//
// It reads a line from reader, parses the first token as the command and
// passes the remaining tokens to the handler. The loop exits on EOF, when the
// user types "exit" or "quit", or when ctx is cancelled.
//
// Errors returned by handlers are reported to the user and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("ck> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(userHelp)
			} else {
				printlnFn(guestHelp)
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			handler, ok := dispatch(a, cmd, args)
			if !ok {
				printlnFn("Unknown command:", cmd)
				continue
			}
			report(handler(ctx))
		}
	}
}

// dispatch resolves cmd to a bound handler.
func dispatch(a execIface, cmd string, args []string) (func(context.Context) error, bool) {
	withArgs := func(fn func(context.Context, []string) error) func(context.Context) error {
		return func(ctx context.Context) error { return fn(ctx, args) }
	}

	switch cmd {
	case "signup", "register":
		return a.Signup, true
	case "verify":
		return withArgs(a.Verify), true
	case "resend":
		return a.Resend, true
	case "login":
		return a.Login, true
	case "otp":
		return a.LoginOTP, true
	case "recover":
		return a.Recover, true
	case "logout":
		return a.Logout, true
	case "whoami":
		return a.WhoAmI, true
	case "l", "list":
		return a.List, true
	case "show":
		return withArgs(a.Show), true
	case "watch":
		return withArgs(a.Watch), true
	case "create":
		return a.Create, true
	case "update":
		return withArgs(a.Update), true
	case "delete":
		return withArgs(a.Delete), true
	case "upload":
		return withArgs(a.Upload), true
	case "url":
		return withArgs(a.MediaURL), true
	case "fetch":
		return withArgs(a.Fetch), true
	case "rmmedia":
		return withArgs(a.DeleteMedia), true
	}
	return nil, false
}

func report(err error) {
	if err == nil {
		return
	}
	printlnFn("Error:", common.UserMessage(err))
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		printlnFn("Please log in again.")
	case errors.Is(err, common.ErrEmailNotVerified):
		printlnFn("Verify your email first: use 'verify <code>' or 'resend'.")
	}
}

// needArgs checks that a command got at least n arguments.
func needArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return common.NewValidationError("", "usage: %s", usage)
	}
	return nil
}
