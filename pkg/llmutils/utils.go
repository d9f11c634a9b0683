package llmutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/x/values"
	"gopkg.in/yaml.v3"
)

// CleanJSON trims any prose around a JSON document, such as
// "Sure, here you go: {...}". It keeps everything between the first
// opening and the last closing brace or bracket.
func CleanJSON(bs []byte) []byte {
	if start := jsonStart(bs); start != -1 {
		bs = bs[start:]
	}
	if end := jsonEnd(bs); end != -1 {
		bs = bs[:end+1]
	}
	return bs
}

// jsonStart returns the index of the first '{' or '[', or -1.
func jsonStart(bs []byte) int {
	obj := bytes.IndexByte(bs, '{')
	arr := bytes.IndexByte(bs, '[')
	switch {
	case obj == -1:
		return arr
	case arr == -1:
		return obj
	default:
		return min(obj, arr)
	}
}

// jsonEnd returns the index of the last '}' or ']', or -1.
func jsonEnd(bs []byte) int {
	obj := bytes.LastIndexByte(bs, '}')
	arr := bytes.LastIndexByte(bs, ']')
	return max(obj, arr)
}

// TrimBackticks removes a ```json or ``` fence around the text.
func TrimBackticks(text string) string {
	return string(BytesTrimBackticks([]byte(text)))
}

var backtick = []byte("```")

// BytesTrimBackticks removes a ```json or ``` fence around the content.
func BytesTrimBackticks(bs []byte) []byte {
	start := bytes.Index(bs, backtick)
	if start == -1 {
		return bs
	}
	start += len(backtick)

	// Skip the language tag after the opening fence, but stop early if the
	// payload starts on the same line.
	for i := start; i < len(bs) && bs[i] != '{' && bs[i] != '['; i++ {
		if bs[i] == '\n' {
			start = i + 1
			break
		}
	}

	content := bs[start:]
	end := bytes.LastIndex(content, backtick)
	if end == -1 {
		return content
	}
	return bytes.TrimSpace(content[:end])
}

// StripComments removes the first <!-- --> comment from the LLM output.
func StripComments(text string) string {
	before, after, ok := strings.Cut(text, "<!--")
	if !ok {
		return text
	}
	_, rest, ok := strings.Cut(after, "-->")
	if !ok {
		return text
	}
	if len(rest) > 1 && rest[0] == '\n' {
		rest = rest[1:]
	}
	return before + rest
}

// RemoveAllComments removes all <!-- --> comments from the LLM output.
func RemoveAllComments(input string) string {
	for {
		cleaned := StripComments(input)
		if cleaned == input {
			return cleaned
		}
		input = cleaned
	}
}

// AddComment prefixes content with a metadata comment.
func AddComment(role, name, typ, content string) string {
	return fmt.Sprintf("<!-- @role=%s @name=%s @content=%s -->\n", role, name, typ) + content
}

// JSONIndent reformats a JSON document with tab indentation.
func JSONIndent(body string) string {
	var buf bytes.Buffer
	_ = json.Indent(&buf, []byte(body), "", "\t")
	return buf.String()
}

// ToJSON marshals a value to compact JSON, ignoring errors.
func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

// ToJSONIndent marshals a value to tab-indented JSON, ignoring errors.
func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

// ToYAML marshals a value to YAML, ignoring errors.
func ToYAML(val any) string {
	js, _ := yaml.Marshal(val)
	return string(js)
}

// BackticksJSON wraps a JSON document in a ```json fence.
func BackticksJSON(js string) string {
	return "\n```json\n" + strings.TrimSpace(js) + "\n```\n"
}

// BackticksYAM wraps a YAML document in a ```yaml fence.
func BackticksYAM(js string) string {
	return "\n```yaml\n" + strings.TrimSpace(js) + "\n```\n"
}

// Stringer is implemented by values that render themselves.
type Stringer interface {
	String() string
}

// Stringify renders a value as a string: Stringer and string values pass
// through, anything else becomes fenced, indented JSON.
func Stringify(s any) string {
	switch v := s.(type) {
	case Stringer:
		return v.String()
	case string:
		return v
	}
	js, _ := json.MarshalIndent(s, "", "\t")
	return BackticksJSON(string(js))
}

// NewContentResponse wraps a value in a single-choice content response.
func NewContentResponse(val any) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: Stringify(val),
			},
		},
	}
}

// MergeInputs merges config defaults with user inputs, user values win.
func MergeInputs(configInputs map[string]any, userInputs map[string]any) map[string]any {
	res := make(map[string]any, len(configInputs)+len(userInputs))
	for k, v := range configInputs {
		res[k] = v
	}
	for k, v := range userInputs {
		res[k] = v
	}
	return res
}

// RoleTitle returns a human readable label for the role.
func RoleTitle(role llms.Role) string {
	switch role {
	case llms.RoleSystem:
		return "System"
	case llms.RoleHuman:
		return "Human"
	case llms.RoleAI:
		return "AI"
	case llms.RoleGeneric:
		return "Generic"
	case llms.RoleTool:
		return "Tool"
	default:
		return string(role)
	}
}

// PrintMessages is a debugging helper for messages.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, mc := range msgs {
		fmt.Fprintf(w, "%s: ", RoleTitle(mc.Role))
		for _, p := range mc.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				fmt.Fprintln(w, pp.Text)
			case llms.ImageURLContent:
				fmt.Fprintln(w, pp.URL)
			case llms.BinaryContent:
				fmt.Fprintf(w, "binary %s, %d bytes\n", pp.MIMEType, len(pp.Data))
			case llms.ToolCall:
				js, _ := json.Marshal(pp)
				fmt.Fprintf(w, "Tool Call: %s\n", js)
			case llms.ToolCallResponse:
				js, _ := json.Marshal(pp)
				fmt.Fprintf(w, "%s: Response: %s\n", pp.Name, js)
			default:
				fmt.Fprintf(w, "unknown part %T\n", pp)
			}
		}
	}
}

// CountMessagesContentSize returns the total byte size of message content.
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size uint64
	for _, mc := range msgs {
		size += uint64(len(mc.Role))
		for _, p := range mc.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				size += uint64(len(pp.Text))
			case llms.ImageURLContent:
				size += uint64(len(pp.URL)) + uint64(len(pp.Detail))
			case llms.BinaryContent:
				size += uint64(len(pp.MIMEType)) + uint64(len(pp.Data))
			case llms.ToolCall:
				size += uint64(len(pp.ID)) + uint64(len(pp.Type))
				if pp.FunctionCall != nil {
					size += uint64(len(pp.FunctionCall.Name)) + uint64(len(pp.FunctionCall.Arguments))
				}
			case llms.ToolCallResponse:
				size += uint64(len(pp.ToolCallID)) + uint64(len(pp.Name)) + uint64(len(pp.Content))
			}
		}
	}
	return size
}

// CountResponseContentSize returns the total byte size of response content.
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	var size uint64
	for _, choice := range resp.Choices {
		size += uint64(len(choice.Content)) + uint64(len(choice.ReasoningContent))
		if choice.FuncCall != nil {
			size += uint64(len(choice.FuncCall.Name)) + uint64(len(choice.FuncCall.Arguments))
		}
		for _, toolCall := range choice.ToolCalls {
			size += uint64(len(toolCall.ID)) + uint64(len(toolCall.Type))
			if toolCall.FunctionCall != nil {
				size += uint64(len(toolCall.FunctionCall.Name)) + uint64(len(toolCall.FunctionCall.Arguments))
			}
		}
	}
	return size
}

// CountTokens sums the token usage reported across all choices.
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	for _, choice := range resp.Choices {
		ma := values.MapAny(choice.GenerationInfo)
		in += ma.Int64("InputTokens")
		out += ma.Int64("OutputTokens")
		total += ma.Int64("TotalTokens")
	}
	return
}

// PrintRoleMessages prints messages optionally filtered by role.
func PrintRoleMessages(w io.Writer, msgs []llms.Message, filter ...llms.Role) {
	for _, mc := range msgs {
		if len(filter) > 0 && !slices.Contains(filter, mc.Role) {
			continue
		}
		fmt.Fprintf(w, "%s: ", RoleTitle(mc.Role))
		fmt.Fprintln(w, mc.GetContent())
	}
}

// FindLastUserQuestion returns the text of the most recent human message.
func FindLastUserQuestion(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != llms.RoleHuman {
			continue
		}
		for _, part := range msg.Parts {
			if textPart, ok := part.(llms.TextContent); ok {
				return textPart.Text
			}
		}
	}
	return ""
}

// ExtractTag returns the value following a tag prefix such as # or @,
// up to the next space or newline.
func ExtractTag(input string, tagPrefix string) string {
	start := strings.Index(input, tagPrefix)
	if start == -1 {
		return ""
	}
	start += len(tagPrefix)

	end := strings.IndexAny(input[start:], " \n")
	if end == -1 {
		return input[start:]
	}
	return input[start : start+end]
}

// EnsureEndsWithNewline trims surrounding whitespace and guarantees a
// trailing newline on non-empty strings.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}
