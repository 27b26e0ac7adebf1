package chatbot

import "errors"

// Validation failures. The machine turns these into re-prompts.
var (
	ErrDocumentRequired = errors.New("document is required")
	ErrDocumentFormat   = errors.New("document must contain only digits")
	ErrPersonNotFound   = errors.New("no holder or dependent has that document")
	ErrNotOwner         = errors.New("person is not covered under the requester's plan")
)
