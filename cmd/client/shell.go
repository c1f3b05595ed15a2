package main

import (
	"context"
	"dm-relay/domain"
	"dm-relay/errors"
	"dm-relay/services"
	stderrors "errors"
	"strings"
)

// messenger is the part of runtime.Messenger the shell drives.
type messenger interface {
	Register(ctx context.Context, name string) (domain.ClientIdentity, error)
	Search(ctx context.Context, query string) ([]string, error)
	Select(ctx context.Context, peer string) error
	Send(ctx context.Context, body string) (services.SendOutcome, error)
	Identity() (domain.ClientIdentity, bool)
	Target() (string, bool)
	Peers() []string
	Streaming() bool
	Logout() error
}

type terminal interface {
	Info(format string, args ...any)
	Users(query string, names []string)
	Peers(peers []string, target string)
	Help()
}

type shell struct {
	m    messenger
	term terminal
}

func newShell(m messenger, term terminal) *shell {
	return &shell{m: m, term: term}
}

func parseCommand(line string) (cmd, arg string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	cmd, arg, _ = strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// exec runs one input line and reports whether the client should stop.
// Failures the services already reported on the display are not repeated.
func (s *shell) exec(ctx context.Context, line string) bool {
	cmd, arg := parseCommand(line)
	switch cmd {
	case "":
		if arg == "" {
			return false
		}
		if _, err := s.m.Send(ctx, arg); err != nil {
			switch {
			case stderrors.Is(err, errors.ErrNoIdentity):
				s.term.Info("Register first with /register <name>")
			case stderrors.Is(err, errors.ErrNoTarget):
				s.term.Info("Pick someone with /select <name>")
			}
		}
	case "/register":
		_, _ = s.m.Register(ctx, arg)
	case "/search":
		users, err := s.m.Search(ctx, arg)
		if err != nil {
			s.term.Info("Search failed: %v", err)
			return false
		}
		s.term.Users(arg, users)
	case "/select":
		if err := s.m.Select(ctx, arg); err != nil {
			s.term.Info("Cannot select %q: %v", arg, err)
			return false
		}
		s.term.Info("Now talking to %s", arg)
	case "/peers":
		target, _ := s.m.Target()
		s.term.Peers(s.m.Peers(), target)
	case "/whoami":
		identity, ok := s.m.Identity()
		if !ok {
			s.term.Info("Not registered")
			return false
		}
		status := "offline"
		if s.m.Streaming() {
			status = "listening"
		}
		s.term.Info("%s (%s), %s", identity.Name, identity.ClientURI, status)
	case "/logout":
		if err := s.m.Logout(); err != nil {
			s.term.Info("Logout incomplete: %v", err)
			return false
		}
		s.term.Info("Session cleared")
	case "/quit", "/exit":
		return true
	case "/help":
		s.term.Help()
	default:
		s.term.Info("Unknown command %s", cmd)
		s.term.Help()
	}
	return false
}
