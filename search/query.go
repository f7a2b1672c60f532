package search

import (
	"strconv"
	"strings"
)

const defaultLimit = 10

// Query is the structured form of a search command, decoupling the raw
// chat input from the index engine.
type Query struct {
	RawInput string
	Terms    string
	RoomID   string
	Sender   string
	Limit    int
}

// ParseQuery extracts command-line style arguments from a raw message.
// Example: /find exam schedule --room cs101_grp --limit 5
func ParseQuery(input string) Query {
	q := Query{RawInput: input, Limit: defaultLimit}

	parts := strings.Fields(input)
	var terms []string
	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			value := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "room":
				q.RoomID = value
			case "sender":
				q.Sender = value
			case "limit":
				if n, err := strconv.Atoi(value); err == nil && n > 0 {
					q.Limit = n
				}
			}
			i++
			continue
		}

		if !strings.HasPrefix(part, "/") {
			terms = append(terms, part)
		}
	}

	q.Terms = strings.Join(terms, " ")
	return q
}
