package util

import (
	"fmt"

	"github.com/ctxeco/backend/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewDocumentID returns a fresh document identifier.
func NewDocumentID() (string, error) {
	return gonanoid.Generate(idAlphabet, 16)
}

// NewProvenanceID builds the provenance identifier for a document of the
// given class. The class initial prefixes a short random suffix, so the
// tier of any chunk is readable straight off its provenance tag.
func NewProvenanceID(class common.DataClass) (string, error) {
	suffix, err := gonanoid.Generate(idAlphabet, 8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", class.Initial(), suffix), nil
}

// ChunkID derives the identifier of the i-th chunk of a document.
// Chunk identifiers sort in extraction order within a document.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s-%04d", documentID, ordinal)
}

// NewID returns a general-purpose identifier for rows that have no
// derived naming scheme, such as graph nodes and connector configs.
func NewID() (string, error) {
	return gonanoid.New()
}
