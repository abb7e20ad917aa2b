package convert

import (
	"strings"

	"github.com/spoolworks/spool/pkg/unified"
)

// Producers embed slash-command invocations in otherwise-ordinary user
// messages as XML-ish envelopes: a <command-name> record (optionally
// with <command-args>) opens a pending command, and a later
// <local-command-stdout> record closes it. CommandParser is the small
// state machine that pairs the two into one command-type message.

const (
	tagCommandName   = "command-name"
	tagCommandArgs   = "command-args"
	tagCommandStdout = "local-command-stdout"
)

// DefaultSuppressedCommands are commands with no conversational value;
// both the invocation and its stdout are dropped entirely.
var DefaultSuppressedCommands = []string{"clear", "/clear"}

// CommandParser pairs command-name envelopes with their stdout. One
// parser serves one conversion; it is not reusable across transcripts.
type CommandParser struct {
	suppressed map[string]struct{}

	pending        *unified.Message
	pendingDropped bool
}

// NewCommandParser builds a parser suppressing the given command names.
// No arguments means the default suppression set.
func NewCommandParser(suppressed ...string) *CommandParser {
	if len(suppressed) == 0 {
		suppressed = DefaultSuppressedCommands
	}
	set := make(map[string]struct{}, len(suppressed))
	for _, name := range suppressed {
		set[strings.TrimPrefix(strings.TrimSpace(name), "/")] = struct{}{}
	}
	return &CommandParser{suppressed: set}
}

// Feed inspects one user-message text. When the text is a command
// envelope it is consumed (handled == true) and zero or more completed
// command messages are returned; otherwise handled is false and the
// caller treats the text as ordinary content.
func (p *CommandParser) Feed(text, id, timestamp string) (msgs []unified.Message, handled bool) {
	if name, ok := tagContent(text, tagCommandName); ok {
		// A new invocation flushes any command still waiting on stdout.
		msgs = p.Flush()

		if _, drop := p.suppressed[strings.TrimPrefix(strings.TrimSpace(name), "/")]; drop {
			p.pendingDropped = true
			return msgs, true
		}

		msg := unified.Message{
			Type:      unified.MessageCommand,
			ID:        id,
			Timestamp: timestamp,
			Command:   strings.TrimSpace(name),
		}
		if args, ok := tagContent(text, tagCommandArgs); ok {
			msg.Args = strings.TrimSpace(args)
		}
		p.pending = &msg
		return msgs, true
	}

	if stdout, ok := tagContent(text, tagCommandStdout); ok {
		if p.pendingDropped {
			p.pendingDropped = false
			return nil, true
		}
		if p.pending == nil {
			// Stray stdout with no opening envelope carries nothing.
			return nil, true
		}
		msg := *p.pending
		msg.Stdout = strings.TrimSpace(stdout)
		p.pending = nil
		return []unified.Message{msg}, true
	}

	return nil, false
}

// Flush emits any command still open at end of transcript, with no
// stdout attached.
func (p *CommandParser) Flush() []unified.Message {
	p.pendingDropped = false
	if p.pending == nil {
		return nil
	}
	msg := *p.pending
	p.pending = nil
	return []unified.Message{msg}
}

// tagContent extracts the inner text of <tag>...</tag> from s.
func tagContent(s, tag string) (string, bool) {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.Index(s, open)
	if start == -1 {
		return "", false
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end == -1 {
		// Unterminated tag: take everything after the opener.
		return rest, true
	}
	return rest[:end], true
}
