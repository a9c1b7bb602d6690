package common

import (
	"errors"
	"strings"
)

// Sentinels for errors.Is matching by kind only.
var (
	ErrDocumentFormat  = &Error{Kind: ErrorKindDocumentFormat}
	ErrImageFile       = &Error{Kind: ErrorKindImageFile}
	ErrImageConversion = &Error{Kind: ErrorKindImageConversion}
	ErrHtmlProcessing  = &Error{Kind: ErrorKindHtmlProcessing}
	ErrConfiguration   = &Error{Kind: ErrorKindConfiguration}
)

// Error is a processing failure with enough context to locate offending
// input. Any of the context fields may be empty.
type Error struct {
	Kind     ErrorKind
	Document string
	Code     string
	Token    string
	Err      error
}

// NewError creates failure of a given kind wrapping err.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WithDocument returns a copy of e with document name set.
func (e *Error) WithDocument(doc string) *Error {
	c := *e
	c.Document = doc
	return &c
}

// WithCode returns a copy of e with code set.
func (e *Error) WithCode(code string) *Error {
	c := *e
	c.Code = code
	return &c
}

// WithToken returns a copy of e with token set.
func (e *Error) WithToken(token string) *Error {
	c := *e
	c.Token = token
	return &c
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	var ctx []string
	if e.Document != "" {
		ctx = append(ctx, "document="+e.Document)
	}
	if e.Code != "" {
		ctx = append(ctx, "code="+e.Code)
	}
	if e.Token != "" {
		ctx = append(ctx, "token="+e.Token)
	}
	if len(ctx) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality, so sentinels match any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns kind of the first *Error in err chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
