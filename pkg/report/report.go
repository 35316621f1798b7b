package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/sections"
)

// Metadata describes the run a report was produced from.
type Metadata struct {
	RunID       string
	Hostname    string
	GeneratedAt time.Time
	Duration    time.Duration
}

// Config controls page setup and labels. Zero fields take defaults.
type Config struct {
	Title       string  // document title, default "Linux System Audit Report"
	Author      string  // PDF author field
	PageSize    string  // fpdf size name, default "A4"
	ContentSize float64 // point size of section content, default 8
}

const (
	defaultTitle       = "Linux System Audit Report"
	defaultPageSize    = "A4"
	defaultContentSize = 8.0
	tabWidth           = 4
	emptyContent       = "(no output)"
)

// Renderer turns a section set into a PDF document.
type Renderer struct {
	cfg        Config
	noCompress bool // tests disable stream compression to search raw bytes
}

// New returns a Renderer for cfg.
func New(cfg Config) *Renderer {
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	if cfg.Author == "" {
		cfg.Author = defaults.ToolName
	}
	if cfg.PageSize == "" {
		cfg.PageSize = defaultPageSize
	}
	if cfg.ContentSize <= 0 {
		cfg.ContentSize = defaultContentSize
	}
	return &Renderer{cfg: cfg}
}

// RenderBytes renders into memory.
func (r *Renderer) RenderBytes(set *sections.Set, meta Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, set, meta); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render writes the PDF for set to w. Sections appear in set order.
func (r *Renderer) Render(w io.Writer, set *sections.Set, meta Metadata) error {
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	meta.GeneratedAt = meta.GeneratedAt.UTC()

	pdf := gofpdf.New("P", "mm", r.cfg.PageSize, "")
	pdf.SetCompression(!r.noCompress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(meta.GeneratedAt)
	pdf.SetModificationDate(meta.GeneratedAt)
	pdf.SetTitle(r.cfg.Title, true)
	pdf.SetAuthor(r.cfg.Author, true)
	pdf.SetCreator(defaults.ToolName+" "+defaults.Version, true)
	pdf.SetSubject("System audit of "+hostLabel(meta.Hostname), true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("{nb}")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s - page %d of {nb}", defaults.ToolName, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	r.addTitleBlock(pdf, meta)
	r.addMetadataBlock(pdf, meta, set.Len())

	for _, sec := range set.Sections() {
		r.addSection(pdf, sec)
	}
	if set.Len() == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(120, 120, 120)
		pdf.MultiCell(0, 6, "The audit produced no sections.", "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: render pdf: %w", err)
	}
	return nil
}

func (r *Renderer) addTitleBlock(pdf *gofpdf.Fpdf, meta Metadata) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 12, encode(r.cfg.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 7, encode(hostLabel(meta.Hostname)), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(left, pdf.GetY(), pageW-right, pdf.GetY())
	pdf.Ln(4)
}

func (r *Renderer) addMetadataBlock(pdf *gofpdf.Fpdf, meta Metadata, count int) {
	rows := [][2]string{
		{"Generated", meta.GeneratedAt.Format(time.RFC3339)},
		{"Hostname", hostLabel(meta.Hostname)},
	}
	if meta.RunID != "" {
		rows = append(rows, [2]string{"Run ID", meta.RunID})
	}
	if meta.Duration > 0 {
		rows = append(rows, [2]string{"Duration", fmt.Sprintf("%.1fs", meta.Duration.Seconds())})
	}
	rows = append(rows, [2]string{"Sections", fmt.Sprintf("%d", count)})

	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(35, 6, row[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, encode(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (r *Renderer) addSection(pdf *gofpdf.Fpdf, sec sections.Section) {
	heading := fmt.Sprintf("Section %d: %s", sec.ID, sec.Title)

	// Keep a heading on the same page as at least a few lines of content.
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	if pdf.GetY()+20 > pageH-bottom {
		pdf.AddPage()
	}

	pdf.Bookmark(outlineText(heading), 0, -1)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(241, 245, 249)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 8, encode(heading), "", 1, "L", true, 0, "")
	pdf.Ln(1)

	content := sec.Content
	if strings.TrimSpace(content) == "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.MultiCell(0, 5, emptyContent, "", "L", false)
	} else {
		lineH := r.cfg.ContentSize * 0.45
		pdf.SetFont("Courier", "", r.cfg.ContentSize)
		pdf.SetTextColor(20, 20, 20)
		pdf.MultiCell(0, lineH, encode(preformat(content)), "", "L", false)
	}
	pdf.Ln(5)
}

func hostLabel(h string) string {
	if h == "" {
		return "unknown host"
	}
	return h
}

// preformat expands tabs and blanks out control characters that the core
// fonts have no glyph for. Newlines are kept.
func preformat(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	col := 0
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
			col = 0
		case r == '\t':
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case r < 0x20 || r == 0x7f:
			b.WriteByte(' ')
			col++
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}

// encode transcodes UTF-8 to Windows-1252 for fpdf's core fonts.
// outlineText encodes s for a bookmark title. Outline strings are read as
// PDFDocEncoding unless they carry a UTF-16BE byte order mark, and fpdf only
// adds one when a UTF-8 font is active.
func outlineText(s string) string {
	out, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String(s)
	if err != nil {
		return encode(s)
	}
	return out
}

func encode(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			out = append(out, byte(r))
			continue
		}
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return string(out)
}
