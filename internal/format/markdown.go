package format

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

var (
	headerRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)$`)
	// Underscore italics need word boundaries so names like vitamin_d survive
	tokenRe = regexp.MustCompile("\\*\\*(.+?)\\*\\*|__(.+?)__|`([^`]+?)`|\\b_([^_\\n]+?)_\\b")
)

// UTF16Len calculates the UTF-16 length of a string
// This is required because Telegram uses UTF-16 code units for entity offsets/lengths
func UTF16Len(s string) int {
	length := 0
	for _, b := range []byte(s) {
		if (b & 0xc0) != 0x80 {
			if b >= 0xf0 {
				length += 2 // Non-BMP characters (surrogate pairs)
			} else {
				length += 1
			}
		}
	}
	return length
}

// ParseMarkdown converts the small markdown subset used by bot replies into
// Telegram message entities:
// - **bold** or __bold__ -> bold
// - _italic_ -> italic
// - `code` -> code
// - # Header -> bold
//
// Markers are consumed in a single left-to-right pass, so entity offsets are
// already sorted.
func ParseMarkdown(text string) ParseResult {
	text = headerRe.ReplaceAllString(text, "**$1**")

	var sb strings.Builder
	var entities []tgbotapi.MessageEntity
	offset := 0
	last := 0

	for _, m := range tokenRe.FindAllStringSubmatchIndex(text, -1) {
		plain := text[last:m[0]]
		sb.WriteString(plain)
		offset += UTF16Len(plain)

		var kind, inner string
		switch {
		case m[2] != -1:
			kind, inner = "bold", text[m[2]:m[3]]
		case m[4] != -1:
			kind, inner = "bold", text[m[4]:m[5]]
		case m[6] != -1:
			kind, inner = "code", text[m[6]:m[7]]
		default:
			kind, inner = "italic", text[m[8]:m[9]]
		}

		length := UTF16Len(inner)
		entities = append(entities, tgbotapi.MessageEntity{
			Type:   kind,
			Offset: offset,
			Length: length,
		})
		sb.WriteString(inner)
		offset += length
		last = m[1]
	}
	sb.WriteString(text[last:])

	return ParseResult{
		Text:     strings.TrimRight(sb.String(), " \n"),
		Entities: entities,
	}
}
