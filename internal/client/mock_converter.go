package client

import (
	"context"
	"fmt"
	"strings"
)

// MockConverter produces a deterministic CSV locally when the conversion
// service is not configured, so the full job pipeline can run in
// development and tests.
type MockConverter struct{}

// NewMockConverter creates the development fallback converter.
func NewMockConverter() *MockConverter {
	return &MockConverter{}
}

// Convert emits one summary row per input file. Deterministic for
// identical inputs.
func (m *MockConverter) Convert(_ context.Context, document []byte, documentName string, reference []byte, referenceName string) ([]byte, error) {
	var b strings.Builder
	b.WriteString("source,filename,bytes\n")
	fmt.Fprintf(&b, "document,%s,%d\n", documentName, len(document))
	if len(reference) > 0 {
		fmt.Fprintf(&b, "reference,%s,%d\n", referenceName, len(reference))
	}
	return []byte(b.String()), nil
}
