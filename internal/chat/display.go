package chat

import (
	"regexp"

	"github.com/tidwall/gjson"
)

var fencedBlock = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$")

// DisplayText normalizes a bot message for display. The backend occasionally
// returns a serialized payload where plain prose was expected; when the whole
// text is a fenced code block and/or valid JSON with a string "response"
// field, the inner string is shown. Anything else passes through verbatim.
func DisplayText(raw string) string {
	text := raw
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if !gjson.Valid(text) {
		return raw
	}
	if v := gjson.Get(text, "response"); v.Type == gjson.String {
		return v.String()
	}
	return raw
}
