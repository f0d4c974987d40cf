package pipeline

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/quote-cli/internal/model"
)

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Run(ctx context.Context, uploads []model.Upload) (*model.ExtractionResult, error) {
	args := m.Called(ctx, uploads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtractionResult), args.Error(1)
}

// --- Exporter Mock ---

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) Export(w io.Writer, items []model.Item, format string) (*model.ExportResult, error) {
	args := m.Called(w, items, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExportResult), args.Error(1)
}

// extractorFunc adapts a function to Extractor.
type extractorFunc func(ctx context.Context, uploads []model.Upload) (*model.ExtractionResult, error)

func (f extractorFunc) Run(ctx context.Context, uploads []model.Upload) (*model.ExtractionResult, error) {
	return f(ctx, uploads)
}
