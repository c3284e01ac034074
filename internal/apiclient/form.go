package apiclient

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FormField is one part of a multipart payload. A field with a Filename is
// sent as a file part.
type FormField struct {
	Name        string
	Value       string
	Filename    string
	ContentType string
	Data        []byte
}

// TextField builds a plain form value
func TextField(name, value string) FormField {
	return FormField{Name: name, Value: value}
}

// FileField builds a file part
func FileField(name, filename, contentType string, data []byte) FormField {
	return FormField{Name: name, Filename: filename, ContentType: contentType, Data: data}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// EncodeForm writes fields in order and returns the body with its
// boundary-bearing content type
func EncodeForm(fields ...FormField) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range fields {
		if field.Filename == "" {
			if err := w.WriteField(field.Name, field.Value); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", field.Name, err)
			}
			continue
		}

		contentType := field.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field.Name), quoteEscaper.Replace(field.Filename)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %s: %w", field.Name, err)
		}
		if _, err := part.Write(field.Data); err != nil {
			return nil, "", fmt.Errorf("write file part %s: %w", field.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
