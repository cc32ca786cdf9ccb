package engine

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/scrypster/toolpilot/pkg/types"
)

// Heuristic scoring weights.
const (
	scoreNameMatch     = 50
	scoreSharedWord    = 10
	scorePropertyMatch = 20
)

// leadingVerbs are dropped from humanized tool names so "GetTopAgent" also
// matches a prompt mentioning "top agent".
var leadingVerbs = map[string]bool{
	"get": true, "list": true, "find": true, "fetch": true,
	"search": true, "lookup": true, "query": true, "show": true,
}

// stopWords never count as shared description words.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"what": true, "which": true, "who": true, "with": true,
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// ScoreTool rates how well tool fits prompt: +50 when the tool's name
// appears in the prompt, +10 per distinct description word shared with
// the prompt, +20 per declared property name found in the prompt.
func ScoreTool(tool types.Tool, prompt string) int {
	lower := strings.ToLower(prompt)
	score := 0

	for _, candidate := range nameCandidates(tool.Name) {
		if strings.Contains(lower, candidate) {
			score += scoreNameMatch
			break
		}
	}

	promptWords := wordSet(lower)
	for word := range wordSet(strings.ToLower(tool.Description)) {
		if promptWords[word] {
			score += scoreSharedWord
		}
	}

	for name := range tool.InputSchema.Properties {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			score += scorePropertyMatch
		}
	}
	return score
}

// SelectTool returns the highest-scoring tool. Zero scores never win and
// ties go to the tool listed first.
func SelectTool(tools []types.Tool, prompt string) (types.Tool, int, bool) {
	var best types.Tool
	bestScore := 0
	for _, tool := range tools {
		if s := ScoreTool(tool, prompt); s > bestScore {
			best, bestScore = tool, s
		}
	}
	return best, bestScore, bestScore > 0
}

// ExtractArgs fills the tool's string-typed parameters from prompt. A
// "name: value" (or "name value", "name='value'") mention supplies the
// value; otherwise the whole prompt is used.
func ExtractArgs(tool types.Tool, prompt string) types.Args {
	args := types.Args{}
	for _, name := range tool.InputSchema.PropertyNames() {
		if tool.InputSchema.Properties[name].PrimaryType() != "string" {
			continue
		}
		if value, ok := matchNamedValue(name, prompt); ok {
			args[name] = types.String(value)
		} else {
			args[name] = types.String(prompt)
		}
	}
	return args
}

func matchNamedValue(name, prompt string) (string, bool) {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b[\s:=,\-]*(?:"([^"]*)"|'([^']*)'|([^\s"',;?!]+))`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(prompt)
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		if v := strings.TrimRight(strings.TrimSpace(group), "."); v != "" {
			return v, true
		}
	}
	return "", false
}

// nameCandidates returns the lowercase forms of a tool name that count as
// a mention: the raw name, its words joined by spaces, and the words
// without a leading verb.
func nameCandidates(name string) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for _, existing := range out {
			if existing == s {
				return
			}
		}
		out = append(out, s)
	}

	add(strings.ToLower(name))
	words := splitIdentifier(name)
	add(strings.Join(words, " "))
	if len(words) > 1 && leadingVerbs[words[0]] {
		add(strings.Join(words[1:], " "))
	}
	return out
}

// splitIdentifier breaks camelCase, PascalCase, snake_case and kebab-case
// identifiers into lowercase words. Acronym runs stay together
// ("getHTTPStatus" -> get, http, status).
func splitIdentifier(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r):
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			prevUpper := i > 0 && unicode.IsUpper(runes[i-1])
			if prevLower || (prevUpper && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(s, -1) {
		if !stopWords[w] {
			set[w] = true
		}
	}
	return set
}
