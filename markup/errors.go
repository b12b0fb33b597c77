package markup

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies markup failures.
type ErrorCode int

const (
	CodeSyntax ErrorCode = iota + 1
	CodeTagMismatch
	CodeUndefinedEntity
	CodeInvalidToken
	CodeElement
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSyntax:
		return "XML_ERROR_SYNTAX"
	case CodeTagMismatch:
		return "XML_ERROR_TAG_MISMATCH"
	case CodeUndefinedEntity:
		return "XML_ERROR_UNDEFINED_ENTITY"
	case CodeInvalidToken:
		return "XML_ERROR_INVALID_TOKEN"
	case CodeElement:
		return "ELEMENT_ERROR"
	}
	return "UNKNOWN ERROR"
}

// MarkupSyntaxError aborts translation of a single document.
type MarkupSyntaxError struct {
	Code   ErrorCode
	Line   int
	Column int
	File   string
	Err    error
}

func (e *MarkupSyntaxError) Error() string {
	return fmt.Sprintf("XML error(%d) at line %d column %d: %s (%s): %v", int(e.Code), e.Line, e.Column, e.Code, e.File, e.Err)
}

func (e *MarkupSyntaxError) Unwrap() error {
	return e.Err
}

// ErrElement is returned by handlers refusing their input.
var ErrElement = errors.New("element error")

// classify maps decoder failures to error codes.
func classify(err error) ErrorCode {
	var se *xml.SyntaxError
	if !errors.As(err, &se) {
		return CodeSyntax
	}
	switch msg := se.Msg; {
	case strings.Contains(msg, "invalid character entity"):
		return CodeUndefinedEntity
	case strings.Contains(msg, "element <") && strings.Contains(msg, "closed by"):
		return CodeTagMismatch
	case strings.Contains(msg, "invalid character"), strings.Contains(msg, "illegal character"):
		return CodeInvalidToken
	}
	return CodeSyntax
}
