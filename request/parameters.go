package request

import (
	"github.com/gabriel-vasile/mimetype"
)

// Parameters is the request body. It is one of the values returned by JSON,
// FormURLEncoded, FormData or Raw; nil means no body.
type Parameters interface {
	variant() string
}

type jsonBody struct{ value any }

type formBody struct{ values map[string]any }

type multipartBody struct{ values map[string]any }

type rawBody struct {
	header string
	value  string
	data   []byte
}

func (jsonBody) variant() string      { return "json" }
func (formBody) variant() string      { return "form-url-encoded" }
func (multipartBody) variant() string { return "multipart" }
func (rawBody) variant() string       { return "raw" }

// JSON sends v encoded with encoding/json.
func JSON(v any) Parameters {
	return jsonBody{value: v}
}

// FormURLEncoded sends values as application/x-www-form-urlencoded. Values are
// formatted with fmt.Sprint.
func FormURLEncoded(values map[string]any) Parameters {
	return formBody{values: values}
}

// FormData sends values, plus the descriptor's Files, as multipart/form-data.
func FormData(values map[string]any) Parameters {
	return multipartBody{values: values}
}

// Raw sends data verbatim with one header, typically Content-Type.
func Raw(header, value string, data []byte) Parameters {
	return rawBody{header: header, value: value, data: data}
}

// Variant names the body encoding, or "none" for nil.
func Variant(p Parameters) string {
	if p == nil {
		return "none"
	}
	return p.variant()
}

// File is one multipart file part.
type File struct {
	Key      string
	Name     string
	MimeType string
	Data     []byte
}

// NewFile creates a File. An empty mimeType is detected from data.
func NewFile(key, name, mimeType string, data []byte) File {
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	return File{Key: key, Name: name, MimeType: mimeType, Data: data}
}

func (f File) contentType() string {
	if f.MimeType != "" {
		return f.MimeType
	}
	return mimetype.Detect(f.Data).String()
}
