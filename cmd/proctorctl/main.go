// Command proctorctl is the operator console of a proctor server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

const usage = `usage: proctorctl [--addr URL] [--token TOKEN] <command> [flags]

commands:
  login --username U --password P     print a bearer token
  participants                        list the roster with live presence
  add --id ID --name NAME             add a participant to the current session
  lock ID | unlock ID                 lock or unlock one participant
  emergency                           lock every connected participant
  session [start NAME | end]          show, start or end the exam session
  violations [--participant ID] [--limit N]
  permissions [--status pending|approved|rejected]
  approve ID | reject ID              decide a permission request
  escalation [on | off]               show or switch auto escalation
  config [--blocked a,b] [--allowed a,b] [--flag N] [--lock N] [--face-absence N]
  stats                               server counters
  inspect --db PATH [--prefix P]      dump a BadgerDB directory read-only
`

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	global := pflag.NewFlagSet("proctorctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	addr := global.String("addr", envOr(getenv, "PROCTOR_ADDR", "http://localhost:8765"), "proctor server base URL")
	token := global.String("token", getenv("PROCTOR_TOKEN"), "bearer token from `proctorctl login`")
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "inspect" {
		return report(stderr, runInspect(rest, stdout, stderr))
	}

	c := &commands{api: newAPI(*addr, *token), out: stdout, errOut: stderr}
	handler, ok := c.table()[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}
	return report(stderr, handler(ctx, rest))
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

var errUsage = errors.New("usage")

func report(stderr io.Writer, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, pflag.ErrHelp):
		return exitUsage
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		fmt.Fprintln(stderr, color.Red.Sprintf("unauthorized: %s (run proctorctl login and set PROCTOR_TOKEN)", apiErr.Message))
		return exitRuntime
	}
	fmt.Fprintln(stderr, color.Red.Sprintf("error: %v", err))
	return exitRuntime
}

type commands struct {
	api    *api
	out    io.Writer
	errOut io.Writer
}

type command func(ctx context.Context, args []string) error

func (c *commands) table() map[string]command {
	return map[string]command{
		"login":        c.login,
		"participants": c.participants,
		"add":          c.add,
		"lock":         c.lockCmd("lock"),
		"unlock":       c.lockCmd("unlock"),
		"emergency":    c.emergency,
		"session":      c.session,
		"violations":   c.violations,
		"permissions":  c.permissions,
		"approve":      c.decide("approve"),
		"reject":       c.decide("reject"),
		"escalation":   c.escalation,
		"config":       c.config,
		"stats":        c.stats,
	}
}

func (c *commands) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

// oneArg parses flag-less commands that take a single id.
func (c *commands) oneArg(name string, args []string) (string, error) {
	fs := c.flags(name)
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(c.errOut, "usage: proctorctl %s ID\n", name)
		return "", errUsage
	}
	return fs.Arg(0), nil
}

func (c *commands) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	username := fs.StringP("username", "u", "", "operator username")
	password := fs.StringP("password", "p", "", "operator password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		fmt.Fprintln(c.errOut, "usage: proctorctl login --username U --password P")
		return errUsage
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.api.do(ctx, http.MethodPost, "/admin/login", map[string]string{"username": *username, "password": *password}, &resp); err != nil {
		return err
	}
	fmt.Fprintln(c.out, resp.Token)
	return nil
}

func (c *commands) participants(ctx context.Context, args []string) error {
	if err := c.flags("participants").Parse(args); err != nil {
		return err
	}
	var ps []participant
	if err := c.api.do(ctx, http.MethodGet, "/admin/participants", nil, &ps); err != nil {
		return err
	}
	renderParticipants(c.out, ps)
	return nil
}

func (c *commands) add(ctx context.Context, args []string) error {
	fs := c.flags("add")
	id := fs.String("id", "", "participant id")
	name := fs.String("name", "", "participant name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *name == "" {
		fmt.Fprintln(c.errOut, "usage: proctorctl add --id ID --name NAME")
		return errUsage
	}
	var p participant
	if err := c.api.do(ctx, http.MethodPost, "/admin/participants", map[string]string{"id": *id, "name": *name}, &p); err != nil {
		return err
	}
	renderParticipants(c.out, []participant{p})
	return nil
}

func (c *commands) lockCmd(action string) command {
	return func(ctx context.Context, args []string) error {
		id, err := c.oneArg(action, args)
		if err != nil {
			return err
		}
		var p participant
		if err := c.api.do(ctx, http.MethodPost, "/admin/participants/"+url.PathEscape(id)+"/"+action, nil, &p); err != nil {
			return err
		}
		renderParticipants(c.out, []participant{p})
		return nil
	}
}

func (c *commands) emergency(ctx context.Context, args []string) error {
	if err := c.flags("emergency").Parse(args); err != nil {
		return err
	}
	var resp struct {
		Reached int `json:"reached"`
	}
	if err := c.api.do(ctx, http.MethodPost, "/admin/emergency-lock", nil, &resp); err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Red.Sprintf("emergency lock sent to %d participants", resp.Reached))
	return nil
}

func (c *commands) session(ctx context.Context, args []string) error {
	fs := c.flags("session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var e exam
	var err error
	switch {
	case fs.NArg() == 0:
		err = c.api.do(ctx, http.MethodGet, "/admin/sessions/current", nil, &e)
	case fs.Arg(0) == "start" && fs.NArg() > 1:
		err = c.api.do(ctx, http.MethodPost, "/admin/sessions", map[string]string{"name": strings.Join(fs.Args()[1:], " ")}, &e)
	case fs.Arg(0) == "end" && fs.NArg() == 1:
		err = c.api.do(ctx, http.MethodPost, "/admin/sessions/current/end", nil, &e)
	default:
		fmt.Fprintln(c.errOut, "usage: proctorctl session [start NAME | end]")
		return errUsage
	}
	if err != nil {
		return err
	}
	renderExam(c.out, e)
	return nil
}

func (c *commands) violations(ctx context.Context, args []string) error {
	fs := c.flags("violations")
	participantID := fs.String("participant", "", "only this participant")
	limit := fs.Int("limit", 50, "maximum rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := url.Values{}
	if *participantID != "" {
		q.Set("participant_id", *participantID)
	}
	q.Set("limit", fmt.Sprint(*limit))
	var vs []violation
	if err := c.api.do(ctx, http.MethodGet, "/admin/violations?"+q.Encode(), nil, &vs); err != nil {
		return err
	}
	renderViolations(c.out, vs)
	return nil
}

func (c *commands) permissions(ctx context.Context, args []string) error {
	fs := c.flags("permissions")
	status := fs.String("status", "", "pending, approved or rejected")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "/admin/permissions"
	if *status != "" {
		path += "?status=" + url.QueryEscape(*status)
	}
	var ps []permission
	if err := c.api.do(ctx, http.MethodGet, path, nil, &ps); err != nil {
		return err
	}
	renderPermissions(c.out, ps)
	return nil
}

func (c *commands) decide(action string) command {
	return func(ctx context.Context, args []string) error {
		id, err := c.oneArg(action, args)
		if err != nil {
			return err
		}
		var p permission
		if err := c.api.do(ctx, http.MethodPost, "/admin/permissions/"+url.PathEscape(id)+"/"+action, nil, &p); err != nil {
			return err
		}
		renderPermissions(c.out, []permission{p})
		return nil
	}
}

func (c *commands) escalation(ctx context.Context, args []string) error {
	fs := c.flags("escalation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var e escalation
	var err error
	switch {
	case fs.NArg() == 0:
		err = c.api.do(ctx, http.MethodGet, "/admin/escalation", nil, &e)
	case fs.NArg() == 1 && (fs.Arg(0) == "on" || fs.Arg(0) == "off"):
		err = c.api.do(ctx, http.MethodPut, "/admin/escalation", map[string]bool{"auto_escalation": fs.Arg(0) == "on"}, &e)
	default:
		fmt.Fprintln(c.errOut, "usage: proctorctl escalation [on | off]")
		return errUsage
	}
	if err != nil {
		return err
	}
	renderEscalation(c.out, e)
	return nil
}

func (c *commands) config(ctx context.Context, args []string) error {
	fs := c.flags("config")
	blocked := fs.StringSlice("blocked", nil, "blocked application patterns")
	allowed := fs.StringSlice("allowed", nil, "allowed application patterns")
	flag := fs.Int("flag", 0, "warnings before flag")
	lock := fs.Int("lock", 0, "warnings before lock")
	faceAbsence := fs.Int("face-absence", 0, "face absence threshold in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}

	body := map[string]any{
		"blocked_applications": *blocked,
		"allowed_applications": *allowed,
	}
	if fs.Changed("flag") {
		body["warnings_before_flag"] = *flag
	}
	if fs.Changed("lock") {
		body["warnings_before_lock"] = *lock
	}
	if fs.Changed("face-absence") {
		body["face_absence_threshold"] = *faceAbsence
	}

	var resp struct {
		Reached int            `json:"reached"`
		Rules   map[string]any `json:"rules"`
	}
	if err := c.api.do(ctx, http.MethodPost, "/admin/config", body, &resp); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "rules pushed to %d participants\n", resp.Reached)
	renderMap(c.out, resp.Rules)
	return nil
}

func (c *commands) stats(ctx context.Context, args []string) error {
	if err := c.flags("stats").Parse(args); err != nil {
		return err
	}
	var m map[string]any
	if err := c.api.do(ctx, http.MethodGet, "/admin/stats", nil, &m); err != nil {
		return err
	}
	renderMap(c.out, m)
	return nil
}
