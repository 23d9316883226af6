package models

// Document is a retrievable source document surfaced by the librarian.
type Document struct {
	// ID is the library-assigned identifier, if the document came from the store.
	ID int64 `json:"id,omitempty"`
	// Source is where the document came from (file path, URL, title).
	Source string `json:"source"`
	// Title is a short display title.
	Title string `json:"title,omitempty"`
	// PageContent is the document text.
	PageContent string `json:"page_content"`
}
