// Package common holds small types shared by all processing stages: error
// kinds, element roles and display contexts.
package common

import "fmt"

// Kind of processing failure.
type ErrorKind int

const (
	ErrorKindDocumentFormat ErrorKind = iota
	ErrorKindImageFile
	ErrorKindImageConversion
	ErrorKindHtmlProcessing
	ErrorKindConfiguration
)

var errorKindNames = [...]string{
	ErrorKindDocumentFormat:  "DocumentFormatError",
	ErrorKindImageFile:       "ImageFileError",
	ErrorKindImageConversion: "ImageConversionError",
	ErrorKindHtmlProcessing:  "HtmlProcessingError",
	ErrorKindConfiguration:   "ConfigurationError",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(errorKindNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return errorKindNames[k]
}

// Role of the HTML element referencing an image.
type ElementRole int

const (
	ElementRoleSource ElementRole = iota
	ElementRoleImg
)

func (r ElementRole) String() string {
	switch r {
	case ElementRoleSource:
		return "source"
	case ElementRoleImg:
		return "img"
	default:
		return fmt.Sprintf("ElementRole(%d)", int(r))
	}
}

// Display context of an image with two candidate widths.
type DisplayContext int

const (
	DisplayContextNormal DisplayContext = iota
	DisplayContextCarousel
)

func (d DisplayContext) String() string {
	switch d {
	case DisplayContextNormal:
		return "normal"
	case DisplayContextCarousel:
		return "carousel"
	default:
		return fmt.Sprintf("DisplayContext(%d)", int(d))
	}
}
