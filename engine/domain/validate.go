package domain

import "strings"

// ValidateIndexRequest checks an IndexRequest before it reaches the
// embedding or storage layers. Blank text is the only hard failure;
// tags and properties are free-form.
func ValidateIndexRequest(req IndexRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return NewValidationError("text", req.Text, ErrEmptyText)
	}
	return nil
}

// ValidateQueryText rejects blank query text for the vector search modes.
func ValidateQueryText(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("query_text", text, ErrEmptyQuery)
	}
	return nil
}
