package encoding

import (
	"strings"

	"github.com/effective-security/mcpbridge/chatmodel"
)

// SimpleOutputParser returns the model output as-is, trimmed of surrounding
// whitespace.
type SimpleOutputParser struct{}

var _ chatmodel.OutputParser[chatmodel.String] = (*SimpleOutputParser)(nil)

func NewSimpleOutputParser() chatmodel.OutputParser[chatmodel.String] {
	return &SimpleOutputParser{}
}

func (p *SimpleOutputParser) GetFormatInstructions() string { return "" }

func (p *SimpleOutputParser) Parse(text string) (*chatmodel.String, error) {
	return chatmodel.NewString(strings.TrimSpace(text)), nil
}

func (p *SimpleOutputParser) Type() string { return "simple_parser" }
