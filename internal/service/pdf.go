package service

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	pdfPageWidth  = 612
	pdfPageHeight = 792
	pdfMargin     = 56
	pdfLeading    = 14
	pdfWrapAt     = 92
)

// pdfDocument lays out text lines on a single letter page with the
// standard Helvetica fonts. Lines past the bottom margin are dropped.
type pdfDocument struct {
	title string
	lines []pdfLine
}

type pdfLine struct {
	text string
	bold bool
}

func newPDFDocument(title string) *pdfDocument {
	return &pdfDocument{title: title}
}

func (d *pdfDocument) Heading(text string) {
	d.lines = append(d.lines, pdfLine{text: text, bold: true})
}

func (d *pdfDocument) Paragraph(text string) {
	for _, l := range wrap(text, pdfWrapAt) {
		d.lines = append(d.lines, pdfLine{text: l})
	}
}

func (d *pdfDocument) Blank() {
	d.lines = append(d.lines, pdfLine{})
}

// Bytes encodes the document as PDF 1.4.
func (d *pdfDocument) Bytes() []byte {
	var content bytes.Buffer
	fmt.Fprintf(&content, "BT /F2 15 Tf %d %d Td (%s) Tj ET\n",
		pdfPageWidth/2-len(d.title)*4, pdfPageHeight-pdfMargin, pdfEscape(d.title))

	y := pdfPageHeight - pdfMargin - 3*pdfLeading
	for _, l := range d.lines {
		if y < pdfMargin+2*pdfLeading {
			break
		}
		if l.text != "" {
			font := "/F1 11"
			if l.bold {
				font = "/F2 12"
			}
			fmt.Fprintf(&content, "BT %s Tf %d %d Td (%s) Tj ET\n", font, pdfMargin, y, pdfEscape(l.text))
		}
		y -= pdfLeading
	}
	fmt.Fprintf(&content, "BT /F1 8 Tf %d %d Td (Page 1) Tj ET\n", pdfPageWidth/2-12, pdfMargin/2)

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents 4 0 R "+
			"/Resources << /Font << /F1 5 0 R /F2 6 0 R >> >> >>", pdfPageWidth, pdfPageHeight),
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica-Bold /Encoding /WinAnsiEncoding >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

// pdfEscape escapes a literal string and replaces characters outside
// printable ASCII.
func pdfEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}
