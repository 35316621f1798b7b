// Package report renders parsed audit sections as a paginated PDF.
//
// The layout is intentionally plain: a title block, a metadata block, then
// one block per section with a "Section <id>: <title>" heading and the raw
// command output in a monospaced font. Long lines are wrapped by fpdf's
// default cell layout and nothing else is reformatted, so the document reads
// like the terminal output it came from.
//
// fpdf's core fonts are Windows-1252 encoded. Text is transcoded with
// golang.org/x/text/encoding/charmap and runes outside the code page are
// replaced with '?'.
//
// Output is deterministic for identical sections and metadata: the PDF
// creation date is taken from Metadata.GeneratedAt and resource catalogs are
// emitted in sorted order.
package report
