package model

import "github.com/rotisserie/eris"

// Error kinds surfaced by the pipeline. Wrap them with eris and test with eris.Is.
var (
	ErrUnsupportedFormat  = eris.New("unsupported format")
	ErrMalformedDimension = eris.New("malformed dimension")
	ErrMalformedField     = eris.New("malformed field")
	ErrZeroQuantity       = eris.New("quantity is zero")
	ErrNoItemsFound       = eris.New("no items found")
	ErrTimedOut           = eris.New("extraction timed out")
	ErrExportFailure      = eris.New("export failed")
	ErrNoValidFiles       = eris.New("no files of a supported kind were submitted")
	ErrStageOrder         = eris.New("stage transition not allowed")
	ErrRunDiscarded       = eris.New("pipeline run was discarded")
)
