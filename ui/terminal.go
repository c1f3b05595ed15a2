// Package ui renders the client session on a terminal.
// It observes what the services report and never changes session state.
package ui

import (
	"dm-relay/domain"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Terminal is a line-oriented display. Inbound messages arrive on the stream
// goroutine, so every write holds the same lock.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
	now     func() time.Time
}

func NewTerminal(out io.Writer, colours bool) *Terminal {
	return &Terminal{out: out, colours: colours, now: time.Now}
}

func (t *Terminal) paint(style color.Style, s string) string {
	if !t.colours {
		return s
	}
	return style.Render(s)
}

func (t *Terminal) println(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.out, format+"\n", args...)
}

func (t *Terminal) stamp() string {
	return t.paint(color.New(color.FgGray), t.now().Format("15:04:05"))
}

func (t *Terminal) OnRegistered(identity domain.ClientIdentity) {
	t.println("%s %s %s (%s)", t.stamp(),
		t.paint(color.New(color.FgGreen, color.OpBold), "Signed in as"),
		identity.Name, identity.ClientURI)
}

func (t *Terminal) OnMessageSent(from, body string) {
	t.println("%s %s %s", t.stamp(), t.paint(color.New(color.FgCyan), from+" >"), body)
}

func (t *Terminal) OnMessageReceived(from, body string) {
	t.println("%s %s %s", t.stamp(), t.paint(color.New(color.FgMagenta, color.OpBold), from+" <"), body)
}

func (t *Terminal) OnError(kind domain.ErrorKind, detail string) {
	t.println("%s %s %s", t.stamp(), t.paint(color.New(color.FgRed), "["+string(kind)+"]"), detail)
}

// Info prints a neutral status line.
func (t *Terminal) Info(format string, args ...any) {
	t.println("%s %s", t.stamp(), fmt.Sprintf(format, args...))
}

// Users prints search results as a table.
func (t *Terminal) Users(query string, names []string) {
	if len(names) == 0 {
		t.Info("No user matches %q", query)
		return
	}
	rows := make([][]string, 0, len(names))
	for i, name := range names {
		rows = append(rows, []string{fmt.Sprint(i + 1), name})
	}
	t.table([]string{"#", "User"}, rows)
}

// Peers prints the peers selected so far; the current target is flagged.
func (t *Terminal) Peers(peers []string, target string) {
	if len(peers) == 0 {
		t.Info("No conversation yet, use /select <name>")
		return
	}
	rows := make([][]string, 0, len(peers))
	for _, peer := range peers {
		mark := ""
		if peer == target {
			mark = "*"
		}
		rows = append(rows, []string{mark, peer})
	}
	t.table([]string{"", "Peer"}, rows)
}

func (t *Terminal) table(header []string, rows [][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	table := tablewriter.NewWriter(t.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.AppendBulk(rows)
	table.Render()
}

// Help lists the commands understood by the client.
func (t *Terminal) Help() {
	t.table([]string{"Command", "Effect"}, [][]string{
		{"/register <name>", "claim a display name"},
		{"/search <text>", "find registered users"},
		{"/select <name>", "talk to a user"},
		{"/peers", "list conversations"},
		{"/whoami", "show the current identity"},
		{"/logout", "forget this session"},
		{"/quit", "leave"},
		{"<text>", "send to the selected user"},
	})
}
