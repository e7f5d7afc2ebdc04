package irc

import "strings"

// Message is one parsed client line: [:prefix] VERB params [:trailing].
type Message struct {
	Prefix string
	Verb   string
	Params []string
}

// Trailing returns the last parameter, the usual home of free-form text.
func (m Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}

	return m.Params[len(m.Params)-1]
}

// ParseLine splits a raw protocol line into prefix, verb and parameters.
// The trailing parameter (after " :") may contain spaces. Returns false for
// lines with no verb; such lines are ignored by the server.
func ParseLine(line string) (Message, bool) {
	line = strings.TrimRight(line, "\r\n")
	var msg Message

	if strings.HasPrefix(line, ":") {
		cut := strings.IndexByte(line, ' ')
		if cut < 0 {
			return msg, false
		}
		msg.Prefix = line[1:cut]
		line = line[cut+1:]
	}

	var trailing string
	hasTrailing := false
	if strings.HasPrefix(line, ":") {
		trailing = line[1:]
		line = ""
		hasTrailing = true
	} else if cut := strings.Index(line, " :"); cut >= 0 {
		trailing = line[cut+2:]
		line = line[:cut]
		hasTrailing = true
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return msg, false
	}
	msg.Verb = strings.ToUpper(fields[0])
	msg.Params = fields[1:]
	if hasTrailing {
		msg.Params = append(msg.Params, trailing)
	}

	return msg, true
}

// CasefoldNick lowercases a nickname per the RFC 1459 scandinavian rules:
// []\^ are the uppercase forms of {}|~.
func CasefoldNick(nick string) string {
	var b strings.Builder
	b.Grow(len(nick))
	for i := 0; i < len(nick); i++ {
		c := nick[i]
		switch {
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		case c == '[':
			c = '{'
		case c == ']':
			c = '}'
		case c == '\\':
			c = '|'
		case c == '^':
			c = '~'
		}
		b.WriteByte(c)
	}

	return b.String()
}

// validNick accepts the RFC 1459 nickname grammar: a letter or special
// followed by letters, digits, specials or hyphens.
func validNick(nick string) bool {
	if nick == "" || len(nick) > 30 {
		return false
	}
	for i := 0; i < len(nick); i++ {
		c := nick[i]
		letter := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		digit := c >= '0' && c <= '9'
		special := strings.IndexByte("[]\\`_^{|}~", c) >= 0
		if i == 0 && !letter && !special {
			return false
		}
		if !letter && !digit && !special && c != '-' {
			return false
		}
	}

	return true
}
