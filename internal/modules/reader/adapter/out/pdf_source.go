package out

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"rsc.io/pdf"

	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"
)

// US Letter, used when a page carries no readable MediaBox.
var defaultMediaBox = [4]float64{0, 0, 612, 792}

// PDFSource opens local files, file:// URLs and http(s) URLs. Remote documents are
// downloaded to a temporary file that lives until the document is closed.
type PDFSource struct {
	client *http.Client
	logger hclog.Logger
}

func NewPDFSource(client *http.Client, logger hclog.Logger) readerout.DocumentSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &PDFSource{client: client, logger: logger}
}

func (s *PDFSource) Open(ctx context.Context, rawURL string) (readerout.OpenDocument, error) {
	path, cleanup, err := s.resolve(ctx, rawURL)
	if err != nil {
		return nil, &domain.LoadError{URL: rawURL, Err: err}
	}
	doc, err := openPDF(path, cleanup)
	if err != nil {
		cleanup()
		return nil, &domain.LoadError{URL: rawURL, Err: err}
	}
	s.logger.Debug("document opened", "url", rawURL, "pages", doc.pages)
	return doc, nil
}

func (s *PDFSource) resolve(ctx context.Context, rawURL string) (string, func(), error) {
	noop := func() {}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", noop, errors.New("document has no source url")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return rawURL, noop, nil
	}
	switch u.Scheme {
	case "file":
		return u.Path, noop, nil
	case "http", "https":
		path, err := s.download(ctx, u.String())
		if err != nil {
			return "", noop, err
		}
		return path, func() { _ = os.Remove(path) }, nil
	default:
		return "", noop, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func (s *PDFSource) download(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch document: http %d", resp.StatusCode)
	}
	f, err := os.CreateTemp("", "readingroom-*"+filepath.Ext(req.URL.Path))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("download document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("download document: %w", err)
	}
	return f.Name(), nil
}

type pdfDocument struct {
	mu      sync.Mutex
	file    *os.File
	reader  *pdf.Reader
	pages   int
	cleanup func()
	closed  bool
}

func openPDF(path string, cleanup func()) (doc *pdfDocument, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	pages, err := api.PageCount(f, nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("validate pdf: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			f.Close()
			doc, err = nil, fmt.Errorf("decode pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode pdf: %w", err)
	}
	return &pdfDocument{file: f, reader: reader, pages: pages, cleanup: cleanup}, nil
}

func (d *pdfDocument) PageCount() int {
	return d.pages
}

func (d *pdfDocument) Page(_ context.Context, n int) (desc domain.PageDescriptor, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer recoverPage(n, &err)
	page, err := d.pageLocked(n)
	if err != nil {
		return domain.PageDescriptor{}, err
	}
	box := mediaBox(page.V)
	return domain.PageDescriptor{
		Number: n,
		Width:  math.Abs(box[2]-box[0]) * domain.RenderScale,
		Height: math.Abs(box[3]-box[1]) * domain.RenderScale,
	}, nil
}

func (d *pdfDocument) Render(_ context.Context, desc domain.PageDescriptor) (surface domain.Surface, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer recoverPage(desc.Number, &err)
	page, err := d.pageLocked(desc.Number)
	if err != nil {
		return domain.Surface{}, err
	}
	lines := wrapLines(textLines(page.Content().Text), desc.Columns())
	for len(lines) < desc.Rows() {
		lines = append(lines, "")
	}
	return domain.Surface{Number: desc.Number, Width: desc.Width, Height: desc.Height, Lines: lines}, nil
}

func (d *pdfDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.file.Close()
	d.cleanup()
	return err
}

func (d *pdfDocument) pageLocked(n int) (pdf.Page, error) {
	if d.closed {
		return pdf.Page{}, &domain.PageError{Page: n, Err: os.ErrClosed}
	}
	if n < 1 || n > d.reader.NumPage() {
		return pdf.Page{}, &domain.PageError{Page: n, Err: fmt.Errorf("page out of range 1..%d", d.reader.NumPage())}
	}
	page := d.reader.Page(n)
	if page.V.IsNull() {
		return pdf.Page{}, &domain.PageError{Page: n, Err: errors.New("page is null")}
	}
	return page, nil
}

// rsc.io/pdf panics on malformed content streams.
func recoverPage(n int, err *error) {
	if r := recover(); r != nil {
		*err = &domain.PageError{Page: n, Err: fmt.Errorf("malformed page: %v", r)}
	}
}

// mediaBox follows the Parent chain because MediaBox is inheritable.
func mediaBox(node pdf.Value) [4]float64 {
	for depth := 0; depth < 32 && !node.IsNull(); depth++ {
		box := node.Key("MediaBox")
		if box.Len() == 4 {
			var out [4]float64
			for i := range out {
				out[i] = box.Index(i).Float64()
			}
			if out[2] != out[0] && out[3] != out[1] {
				return out
			}
		}
		node = node.Key("Parent")
	}
	return defaultMediaBox
}

// textLines groups glyph runs into lines top to bottom, left to right.
func textLines(texts []pdf.Text) []string {
	if len(texts) == 0 {
		return nil
	}
	sorted := append([]pdf.Text(nil), texts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > lineTolerance(sorted[i]) {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []string
	var b strings.Builder
	prev := sorted[0]
	b.WriteString(prev.S)
	for _, t := range sorted[1:] {
		if math.Abs(t.Y-prev.Y) > lineTolerance(prev) {
			lines = append(lines, strings.TrimSpace(b.String()))
			b.Reset()
		} else if t.X-(prev.X+prev.W) > prev.FontSize*0.25 {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		prev = t
	}
	lines = append(lines, strings.TrimSpace(b.String()))
	return lines
}

func lineTolerance(t pdf.Text) float64 {
	return math.Max(1, t.FontSize*0.5)
}

func wrapLines(lines []string, width int) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		current := words[0]
		for _, w := range words[1:] {
			if len([]rune(current))+1+len([]rune(w)) > width {
				out = append(out, current)
				current = w
				continue
			}
			current += " " + w
		}
		out = append(out, current)
	}
	return out
}
