package llm

import (
	"regexp"
	"strings"
)

const fence = "```"

// StripCodeFence removes a wrapping ```lang ... ``` block from a completion.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, fence) {
		return text
	}
	nl := strings.Index(text, "\n")
	if nl < 0 {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}
	body := text[nl+1:]
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// jsonFence matches a block opened by ```json, ```JSON, ```jsonc and the like.
// The rest of the opening line is the info string and is dropped.
var jsonFence = regexp.MustCompile(`(?is)` + fence + `json[^\n]*\n(.*?)(?:` + fence + `|\z)`)

// ExtractFenced returns the body of the first ```json block, else of the first
// ``` block, else the whole text.
func ExtractFenced(text string) string {
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if i := strings.Index(text, fence); i >= 0 {
		rest := text[i+len(fence):]
		if end := strings.Index(rest, fence); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}

var firstObject = regexp.MustCompile(`(?s)\{.*?\}`)

// FirstJSONObject returns the shortest {...} span in text, or "".
func FirstJSONObject(text string) string {
	return firstObject.FindString(text)
}
