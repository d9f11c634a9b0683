package chatmodel

import "strings"

// String wraps a plain string so it can serve as model input or output.
type String struct {
	value string
}

// NewString wraps a string value.
func NewString(str string) *String {
	return &String{value: str}
}

// GetContent gets the content of the message for the chat history.
func (o String) GetContent() string {
	return o.value
}

func (s String) String() string {
	return s.value
}

func (s String) Bytes() []byte {
	return []byte(s.value)
}

// ParseInput accepts the raw input as the value.
func (s *String) ParseInput(raw string) error {
	s.value = raw
	return nil
}

// Unmarshal strips surrounding quotes and stores the rest verbatim.
func (s *String) Unmarshal(bs []byte) error {
	s.value = strings.Trim(string(bs), "\"")
	return nil
}
