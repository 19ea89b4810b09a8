// Package backends wires the concrete conversion backends into a registry
// according to configuration.
package backends

import (
	"bindery/internal/config"
	"bindery/internal/convert"
	"bindery/internal/convert/calibre"
	"bindery/internal/convert/comic"
	"bindery/internal/convert/kepubify"
	"bindery/internal/convert/pdfpage"
	"bindery/internal/convert/textex"
	"bindery/internal/convert/thumbnail"
)

// Specialist backends outrank the calibre generalist so pairs they declare
// never fall through to a slower full conversion.
const (
	priorityGeneral    = 0
	prioritySpecialist = 10
)

// NewRegistry builds the production registry from configuration.
func NewRegistry(cfg *config.Config) *convert.Registry {
	registry := convert.NewRegistry()

	registry.Register(kepubify.New(kepubify.WithBinary(cfg.Conversion.KepubifyBinary)), prioritySpecialist)
	registry.Register(comic.New(
		comic.WithUnrarBinary(cfg.Conversion.UnrarBinary),
		comic.WithSevenZipBinary(cfg.Conversion.SevenZipBinary),
	), prioritySpecialist)
	registry.Register(textex.New(textex.WithBinary(cfg.Conversion.PdfToTextBinary)), prioritySpecialist)
	registry.Register(pdfpage.New(), prioritySpecialist)
	registry.Register(thumbnail.New(cfg.Conversion.ThumbnailWidth), prioritySpecialist)
	registry.Register(calibre.New(calibre.WithBinary(cfg.Conversion.EbookConvertBinary)), priorityGeneral)

	return registry
}
