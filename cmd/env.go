package main

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/config"
	"github.com/sells-group/quote-cli/internal/consolidate"
	"github.com/sells-group/quote-cli/internal/export"
	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/fingerprint"
	"github.com/sells-group/quote-cli/internal/ingest"
	"github.com/sells-group/quote-cli/internal/pdftext"
	"github.com/sells-group/quote-cli/internal/pipeline"
)

// quoteEnv holds the components needed by the process, extract and serve
// commands.
type quoteEnv struct {
	Aliases      *extract.AliasTable
	Coordinator  *ingest.Coordinator
	Exporter     *export.Writer
	Orchestrator *pipeline.Orchestrator
}

// initQuote builds the extraction, consolidation and export stack from c.
func initQuote(c *config.Config) (*quoteEnv, error) {
	aliases, err := extract.LoadAliases(c.Extract.AliasFile)
	if err != nil {
		return nil, eris.Wrap(err, "load header aliases")
	}

	pdf, err := pdftext.NewSource(c.PDF)
	if err != nil {
		return nil, err
	}

	coord := ingest.New(extract.NewRegistry(aliases, pdf), c.Extract)
	merger := consolidate.New(fingerprint.New(c.Match))
	writer := export.New(c.Export)

	zap.L().Debug("quote stack initialized",
		zap.String("pdf_provider", c.PDF.Provider),
		zap.String("alias_file", c.Extract.AliasFile),
		zap.Float64("match_threshold", c.Match.Threshold),
	)

	return &quoteEnv{
		Aliases:      aliases,
		Coordinator:  coord,
		Exporter:     writer,
		Orchestrator: pipeline.New(coord, merger, writer),
	}, nil
}
