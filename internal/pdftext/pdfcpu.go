package pdftext

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
)

// Pdfcpu reads page content streams with pdfcpu. It is pure Go and needs
// no external binary.
type Pdfcpu struct {
	conf *model.Configuration
}

// NewPdfcpu creates a Pdfcpu source with the default pdfcpu configuration.
func NewPdfcpu() *Pdfcpu {
	return &Pdfcpu{conf: model.NewDefaultConfiguration()}
}

// Pages returns the text of every page. Pages without text operators come
// back as empty strings so page numbers stay aligned.
func (p *Pdfcpu) Pages(ctx context.Context, content []byte) ([]string, error) {
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), p.conf)
	if err != nil {
		return nil, eris.Wrap(err, "pdftext: pdfcpu read")
	}

	pages := make([]string, 0, pctx.PageCount)
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pdftext: context cancelled")
		}
		pages = append(pages, pageText(pctx, pageNr))
	}
	return pages, nil
}

// PageImages reports for every page whether it draws an image XObject.
func (p *Pdfcpu) PageImages(ctx context.Context, content []byte) ([]bool, error) {
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), p.conf)
	if err != nil {
		return nil, eris.Wrap(err, "pdftext: pdfcpu read")
	}

	images := make([]bool, pctx.PageCount)
	if pctx.Optimize == nil {
		return images, nil
	}
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pdftext: context cancelled")
		}
		images[pageNr-1] = len(pdfcpu.ImageObjNrs(pctx, pageNr)) > 0
	}
	return images, nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromStream(data)
}

var (
	pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
	tdRe        = regexp.MustCompile(`(-?[\d.]+)\s+(-?[\d.]+)\s+T[dD]$`)
)

// textFromStream walks content stream operators and keeps text. A vertical
// move (Td/TD with a non-zero y, T*, ', ") starts a new line; BT/ET blocks
// are separated by newlines as well.
func textFromStream(data []byte) string {
	var sb strings.Builder
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.Equal(line, []byte("BT")), bytes.Equal(line, []byte("ET")), bytes.Equal(line, []byte("T*")):
			newline()
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if m := tdRe.FindSubmatch(line); m != nil && string(m[2]) != "0" {
				newline()
			} else if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodeString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			newline()
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodeString(m[1]))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// decodeString handles PDF literal string escapes.
func decodeString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
