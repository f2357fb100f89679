package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  map[string][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return f.err
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Signup(context.Context) error { return f.record("signup", nil) }
func (f *fakeExec) Verify(_ context.Context, a []string) error { return f.record("verify", a) }
func (f *fakeExec) Resend(context.Context) error { return f.record("resend", nil) }
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login", nil)
}
func (f *fakeExec) LoginOTP(context.Context) error { return f.record("otp", nil) }
func (f *fakeExec) Recover(context.Context) error { return f.record("recover", nil) }
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout", nil)
}
func (f *fakeExec) WhoAmI(context.Context) error { return f.record("whoami", nil) }
func (f *fakeExec) List(context.Context) error { return f.record("list", nil) }
func (f *fakeExec) Show(_ context.Context, a []string) error { return f.record("show", a) }
func (f *fakeExec) Watch(_ context.Context, a []string) error { return f.record("watch", a) }
func (f *fakeExec) Create(context.Context) error { return f.record("create", nil) }
func (f *fakeExec) Update(_ context.Context, a []string) error { return f.record("update", a) }
func (f *fakeExec) Delete(_ context.Context, a []string) error { return f.record("delete", a) }
func (f *fakeExec) Upload(_ context.Context, a []string) error { return f.record("upload", a) }
func (f *fakeExec) MediaURL(_ context.Context, a []string) error { return f.record("url", a) }
func (f *fakeExec) Fetch(_ context.Context, a []string) error { return f.record("fetch", a) }
func (f *fakeExec) DeleteMedia(_ context.Context, a []string) error { return f.record("rmmedia", a) }

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func replInput(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n")))
}

func TestRunREPL_DispatchesCommandsWithArgs(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, replInput(
		"help",
		"signup",
		"verify 123456",
		"login",
		"l",
		"show c-1",
		"watch c-1",
		"upload c-1 ./photo.png",
		"fetch c-1 m-1",
		"rmmedia c-1 m-1",
		"",
		"logout",
		"exit",
		"list",
	))

	require.Equal(t, []string{
		"signup", "verify", "login", "list", "show", "watch", "upload", "fetch", "rmmedia", "logout",
	}, exec.calls)
	require.Equal(t, []string{"123456"}, exec.args["verify"])
	require.Equal(t, []string{"c-1", "./photo.png"}, exec.args["upload"])
	require.Equal(t, []string{"c-1", "m-1"}, exec.args["rmmedia"])
}

func TestRunREPL_UnknownAndQuit(t *testing.T) {
	out := capturePrintln(t)

	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "s" }, replInput("get", "quit", "list"))

	require.Empty(t, exec.calls)
	require.Contains(t, *out, "Unknown command: get")
	require.Contains(t, *out, "Bye!")
}

func TestRunREPL_HelpDependsOnLogin(t *testing.T) {
	out := capturePrintln(t)

	runREPL(context.Background(), &fakeExec{}, func() string { return "s" }, replInput("help"))
	require.Contains(t, *out, guestHelp)

	*out = nil
	runREPL(context.Background(), &fakeExec{loggedIn: true}, func() string { return "s" }, replInput("help"))
	require.Contains(t, *out, userHelp)
}

func TestRunREPL_ReportsErrors(t *testing.T) {
	out := capturePrintln(t)

	exec := &fakeExec{err: fmt.Errorf("list capsules: %w", common.ErrUnauthorized)}
	runREPL(context.Background(), exec, func() string { return "s" }, replInput("list"))

	require.Contains(t, *out, "Error: unauthorized")
	require.Contains(t, *out, "Please log in again.")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capturePrintln(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, replInput("list"))
	require.Empty(t, exec.calls)
}

func TestNeedArgs(t *testing.T) {
	err := needArgs([]string{"a"}, 2, "url <capsule-id> <media-id>")
	require.ErrorIs(t, err, common.ErrValidation)
	require.Equal(t, "usage: url <capsule-id> <media-id>", common.UserMessage(err))
	require.NoError(t, needArgs([]string{"a", "b"}, 2, ""))
}
