package e2e

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/infrastructure/http/client"
	"dm-relay/infrastructure/http/server"
	"dm-relay/repositories"
	"dm-relay/runtime"
	"dm-relay/services"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseRelaySuite struct {
	suite.Suite
	Config  Config
	BaseURL string

	log   *slog.Logger
	relay *httptest.Server
	db    *badger.DB
}

// SetupSuite loads the environment configuration and, without RELAY_ADDR,
// serves a relay from inside the test process.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.log = slog.New(slog.DiscardHandler)

	s.BaseURL = s.Config.RelayAddr
	if s.BaseURL == "" {
		directory, err := server.NewDirectory()
		s.Require().NoError(err)
		s.relay = httptest.NewServer(server.NewServer(s.log, directory, server.Options{Host: "e2e"}).Handler())
		s.BaseURL = s.relay.URL
		s.T().Cleanup(func() { _ = directory.Close() })
	}

	s.db, err = badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
}

func (s *BaseRelaySuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.relay != nil {
		s.relay.Close()
	}
}

// Header prints a colorized step header in the test log.
func (s *BaseRelaySuite) Header(format string, args ...any) {
	header := fmt.Sprintf("  ====== %s ======", fmt.Sprintf(format, args...))
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// UniqueName keeps runs against a long-lived relay from colliding.
func UniqueName(prefix string) string {
	return prefix + "-" + strings.Split(uuid.NewString(), "-")[0]
}

// Client is one messaging participant with everything its display saw.
type Client struct {
	*runtime.Messenger
	Inbox *Inbox
}

// NewClient starts a participant with its own session. It is closed before
// the relay when the test ends.
func (s *BaseRelaySuite) NewClient(sessionID string) *Client {
	c := client.NewClient(s.BaseURL, 5*time.Second)
	var channel contract.PushChannel = client.NewSSEChannel(s.BaseURL, s.log)
	if s.Config.PushTransport == "websocket" {
		channel = client.NewWebSocketChannel(s.BaseURL, s.log)
	}

	inbox := newInbox()
	m, err := runtime.NewMessenger(s.log, runtime.Backends{
		Registry: client.NewRegistryClient(c),
		Delivery: client.NewDeliveryClient(c),
		Channel:  channel,
	}, repositories.NewSessionRepository(s.db, s.log, sessionID), inbox, services.RetryPolicy{
		MaxAttempts:    3,
		Backoff:        services.FixedBackoff(50 * time.Millisecond),
		AttemptTimeout: 2 * time.Second,
	}, nil)
	s.Require().NoError(err)
	t := s.T()
	t.Cleanup(func() {
		_ = m.Close()
		if n := inbox.Dropped(); n > 0 {
			t.Errorf("%s inbox overflowed, %d messages dropped", sessionID, n)
		}
	})
	return &Client{Messenger: m, Inbox: inbox}
}

// Expect waits for the next inbound message of c.
func (s *BaseRelaySuite) Expect(c *Client) Delivered {
	select {
	case d := <-c.Inbox.received:
		return d
	case <-time.After(s.Config.ReceiveTimeout):
		s.FailNow("no message received", "within %s", s.Config.ReceiveTimeout)
		return Delivered{}
	}
}

// ExpectNothing asserts c receives nothing more for a while.
func (s *BaseRelaySuite) ExpectNothing(c *Client, within time.Duration) {
	select {
	case d := <-c.Inbox.received:
		s.FailNow("unexpected message", "%+v", d)
	case <-time.After(within):
	}
}

func (s *BaseRelaySuite) Context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s.T().Cleanup(cancel)
	return ctx
}

type Delivered struct {
	From, Body string
}

// Inbox is a contract.Display that records callbacks for assertions.
type Inbox struct {
	received chan Delivered

	mu      sync.Mutex
	sent    []Delivered
	errors  []domain.ErrorKind
	dropped int
}

const inboxSize = 64

func newInbox() *Inbox {
	return &Inbox{received: make(chan Delivered, inboxSize)}
}

func (i *Inbox) OnRegistered(domain.ClientIdentity) {}

func (i *Inbox) OnMessageSent(from, body string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sent = append(i.sent, Delivered{From: from, Body: body})
}

// OnMessageReceived never blocks: it runs on the stream goroutine, and a
// full inbox must not keep Close from returning. Overflow is counted.
func (i *Inbox) OnMessageReceived(from, body string) {
	select {
	case i.received <- Delivered{From: from, Body: body}:
	default:
		i.mu.Lock()
		i.dropped++
		i.mu.Unlock()
	}
}

func (i *Inbox) Dropped() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dropped
}

func (i *Inbox) OnError(kind domain.ErrorKind, _ string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.errors = append(i.errors, kind)
}

func (i *Inbox) Sent() []Delivered {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Delivered(nil), i.sent...)
}

func (i *Inbox) Errors() []domain.ErrorKind {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]domain.ErrorKind(nil), i.errors...)
}
