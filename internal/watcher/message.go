package watcher

import "strconv"

// MessageKind tells the two variants of Message apart.
type MessageKind int

const (
	// MessageNewFile tells consumers to drop accumulated content and start
	// over with the file named in Path.
	MessageNewFile MessageKind = iota
	// MessageNewLines carries lines to append, oldest first.
	MessageNewLines
)

func (kind MessageKind) String() string {
	switch kind {
	case MessageNewFile:
		return "new_file"
	case MessageNewLines:
		return "new_lines"
	default:
		return "kind(" + strconv.Itoa(int(kind)) + ")"
	}
}

// Message is one unit of a session's output stream.
type Message struct {
	Kind  MessageKind
	Path  string
	Lines []string
}

// NewFile announces that the session now follows path.
func NewFile(path string) Message {
	return Message{Kind: MessageNewFile, Path: path}
}

// NewLines carries one read cycle's batch.
func NewLines(lines []string) Message {
	return Message{Kind: MessageNewLines, Lines: lines}
}
