package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"vbook/config"
	"vbook/content"
	"vbook/markup"
	"vbook/node"
	"vbook/publish"
)

func setupTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))
}

func writeFile(t *testing.T, name, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

// makeBook creates book with two parts, the first one having a chapter and
// an image.
func makeBook(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "novel")
	writeFile(t, filepath.Join(root, "content.xhtml"),
		`<p>Start with <a href="/01-part/01-chapter/#top">chapter</a></p>`)
	writeFile(t, filepath.Join(root, node.MetaFile), `{"title": "Great Novel", "language": "nl", "author": "Jane Doe"}`)
	writeFile(t, filepath.Join(root, "01-part", "content.xhtml"), "<p>Part one</p>")
	writeFile(t, filepath.Join(root, "01-part", node.MetaFile), "{}")
	writeFile(t, filepath.Join(root, "01-part", "pic.png"), "\x89PNG\r\n\x1a\npicture")
	writeFile(t, filepath.Join(root, "01-part", "01-chapter", "content.xhtml"),
		`<p>Back <a href="/">home</a> <img src="/01-part/pic.png" alt="pic"/></p>`)
	writeFile(t, filepath.Join(root, "01-part", "01-chapter", node.MetaFile), "{}")
	writeFile(t, filepath.Join(root, "02-part", "content.xhtml"), "<p>Part two</p>")
	writeFile(t, filepath.Join(root, "02-part", node.MetaFile), "{}")
	return root
}

func testConfig() *config.EpubConfig {
	return &config.EpubConfig{
		FixZip:             true,
		OutputNameTemplate: "{{ .Name }}",
		DefaultLanguage:    "en-US",
		DefaultAuthor:      "anonymous",
		Cover:              config.CoverConfig{Width: 200, Height: 300},
	}
}

func newPublisher(t *testing.T, cfg *config.EpubConfig) (*Publisher, string) {
	t.Helper()
	log := setupTestLogger(t)

	path := makeBook(t)
	shelf := publish.NewBookshelf(nil, log)
	if _, err := shelf.AddBook("", path); err != nil {
		t.Fatalf("AddBook: %v", err)
	}
	opts := markup.Options{}
	eng := markup.New(nil, opts, log)
	p, err := New(shelf, content.NewRegistry(eng, nil, log), cfg, opts, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, path
}

type archive struct {
	order []string
	files map[string][]byte
	first *zip.File
}

func readArchive(t *testing.T, name string) *archive {
	t.Helper()
	r, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open %s: %v", name, err)
	}
	defer r.Close()

	a := &archive{files: make(map[string][]byte)}
	for i, f := range r.File {
		if i == 0 {
			a.first = f
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		a.order = append(a.order, f.Name)
		a.files[f.Name] = data
	}
	return a
}

func (a *archive) xml(t *testing.T, name string) *etree.Document {
	t.Helper()
	data, ok := a.files[name]
	if !ok {
		t.Fatalf("%s is missing from archive: %v", name, a.order)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return doc
}

func manifestHrefs(doc *etree.Document) map[string]string {
	res := make(map[string]string)
	for _, it := range doc.FindElements("//manifest/item") {
		res[it.SelectAttrValue("href", "")] = it.SelectAttrValue("media-type", "")
	}
	return res
}

func TestExportBook(t *testing.T) {
	p, _ := newPublisher(t, testConfig())
	dst := t.TempDir()

	if err := p.ExportBook(context.Background(), "", publish.Options{Destination: dst}); err != nil {
		t.Fatalf("ExportBook: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, srcDir, oebpsDir, opfName)); err != nil {
		t.Errorf("assembled book is not kept: %v", err)
	}

	a := readArchive(t, filepath.Join(dst, "novel.epub"))
	if a.first == nil || a.first.Name != "mimetype" || a.first.Method != zip.Store {
		t.Fatalf("mimetype must be the first stored entry: %v", a.order)
	}
	if got := string(a.files["mimetype"]); got != mimetypeContent {
		t.Errorf("mimetype = %q", got)
	}

	container := a.xml(t, "META-INF/container.xml")
	if rf := container.FindElement("//rootfile"); rf == nil || rf.SelectAttrValue("full-path", "") != "OEBPS/contents.opf" {
		t.Errorf("container does not point to package")
	}

	opf := a.xml(t, "OEBPS/contents.opf")
	hrefs := manifestHrefs(opf)
	want := map[string]string{
		"content.xhtml":                    xhtmlType,
		"01-part/content.xhtml":            xhtmlType,
		"01-part/pic.png":                  "image/png",
		"01-part/01-chapter/content.xhtml": xhtmlType,
		"02-part/content.xhtml":            xhtmlType,
		coverName:                          "image/png",
		ncxName:                            "application/x-dtbncx+xml",
		stylesheetName:                     "text/css",
	}
	if len(hrefs) != len(want) {
		t.Errorf("manifest = %v", hrefs)
	}
	for href, mt := range want {
		if got, ok := hrefs[href]; !ok || got != mt {
			t.Errorf("manifest item %s = %q, want %q", href, got, mt)
		}
		if _, ok := a.files["OEBPS/"+href]; !ok {
			t.Errorf("OEBPS/%s is missing from archive", href)
		}
	}
	if got := len(opf.FindElements("//spine/itemref")); got != 4 {
		t.Errorf("spine has %d items", got)
	}

	var title, lang, creator string
	if md := opf.FindElement("//metadata"); md != nil {
		for _, el := range md.ChildElements() {
			switch el.FullTag() {
			case "dc:title":
				title = el.Text()
			case "dc:language":
				lang = el.Text()
			case "dc:creator":
				creator = el.Text()
			}
		}
	}
	if title != "Great Novel" || lang != "nl" || creator != "Jane Doe" {
		t.Errorf("metadata = %q %q %q", title, lang, creator)
	}

	ncx := a.xml(t, "OEBPS/toc.ncx")
	top := ncx.FindElements("//navMap/navPoint")
	if len(top) != 1 {
		t.Fatalf("navMap has %d top level points", len(top))
	}
	parts := top[0].SelectElements("navPoint")
	if len(parts) != 2 {
		t.Fatalf("book has %d nested points", len(parts))
	}
	chapters := parts[0].SelectElements("navPoint")
	if len(chapters) != 1 {
		t.Fatalf("first part has %d nested points", len(chapters))
	}
	if got := chapters[0].SelectAttrValue("playOrder", ""); got != "3" {
		t.Errorf("chapter play order = %s", got)
	}
	if label := chapters[0].FindElement("navLabel/text"); label == nil || label.Text() != "01 Chapter" {
		t.Errorf("chapter label is wrong")
	}
	for _, meta := range ncx.FindElements("//head/meta") {
		if meta.SelectAttrValue("name", "") == "dtb:depth" && meta.SelectAttrValue("content", "") != "3" {
			t.Errorf("dtb:depth = %s", meta.SelectAttrValue("content", ""))
		}
	}

	cover, err := png.Decode(bytes.NewReader(a.files["OEBPS/"+coverName]))
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if b := cover.Bounds(); b.Dx() > 200 || b.Dy() > 300 {
		t.Errorf("cover is %dx%d", b.Dx(), b.Dy())
	}
}

func TestExportBook_Report(t *testing.T) {
	p, _ := newPublisher(t, testConfig())
	reportName := filepath.Join(t.TempDir(), "report.zip")
	rpt, err := (&config.ReporterConfig{Destination: reportName}).Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	p.WithReport(rpt)

	dst := t.TempDir()
	if err := p.ExportBook(context.Background(), "", publish.Options{Destination: dst}); err != nil {
		t.Fatalf("ExportBook: %v", err)
	}
	if err := rpt.Close(); err != nil {
		t.Fatalf("report Close: %v", err)
	}

	a := readArchive(t, reportName)
	for _, name := range []string{
		"result/novel.epub",
		"epub/novel/mimetype",
		"epub/novel/OEBPS/contents.opf",
		"epub/novel/OEBPS/01-part/01-chapter/content.xhtml",
	} {
		if _, ok := a.files[name]; !ok {
			t.Errorf("report does not contain %s: %v", name, a.order)
		}
	}
	// stored result is the exported archive itself
	epub, err := os.ReadFile(filepath.Join(dst, "novel.epub"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.files["result/novel.epub"], epub) {
		t.Errorf("stored result differs from exported book")
	}
}

func TestExportBook_ReportOnFailure(t *testing.T) {
	p, path := newPublisher(t, testConfig())
	writeFile(t, filepath.Join(path, "02-part", "content.xhtml"), "<p>broken")
	reportName := filepath.Join(t.TempDir(), "report.zip")
	rpt, err := (&config.ReporterConfig{Destination: reportName}).Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	p.WithReport(rpt)

	if err := p.ExportBook(context.Background(), "", publish.Options{Destination: t.TempDir()}); err == nil {
		t.Fatal("expected export to fail on broken markup")
	}
	if err := rpt.Close(); err != nil {
		t.Fatalf("report Close: %v", err)
	}

	a := readArchive(t, reportName)
	if _, ok := a.files["epub/novel/mimetype"]; !ok {
		t.Errorf("assembled book must be reported: %v", a.order)
	}
	for _, name := range a.order {
		if strings.HasPrefix(name, "result/") {
			t.Errorf("failed export must not report result, got %s", name)
		}
	}
}

func TestExportBook_Links(t *testing.T) {
	p, _ := newPublisher(t, testConfig())
	dst := t.TempDir()
	if err := p.ExportBook(context.Background(), "", publish.Options{Destination: dst}); err != nil {
		t.Fatalf("ExportBook: %v", err)
	}
	a := readArchive(t, filepath.Join(dst, "novel.epub"))

	root := string(a.files["OEBPS/content.xhtml"])
	chapter := string(a.files["OEBPS/01-part/01-chapter/content.xhtml"])

	for _, c := range []struct {
		page, want string
	}{
		{root, `<?xml version="1.0" encoding="UTF-8"?>`},
		{root, `href="01-part/01-chapter/content.xhtml#top"`},
		{root, `href="css/epub-book.css"`},
		{root, `xml:lang="nl"`},
		{chapter, `href="../../content.xhtml"`},
		{chapter, `src="../pic.png"`},
		{chapter, `href="../../css/epub-book.css"`},
		{chapter, `<title>Great Novel: 01 Chapter</title>`},
	} {
		if !strings.Contains(c.page, c.want) {
			t.Errorf("page does not contain %s:\n%s", c.want, c.page)
		}
	}
}

func TestExportBook_Exclude(t *testing.T) {
	p, _ := newPublisher(t, testConfig())
	dst := t.TempDir()
	opts := publish.Options{Destination: dst, Exclude: []string{"/01-part"}}
	if err := p.ExportBook(context.Background(), "", opts); err != nil {
		t.Fatalf("ExportBook: %v", err)
	}
	a := readArchive(t, filepath.Join(dst, "novel.epub"))

	hrefs := manifestHrefs(a.xml(t, "OEBPS/contents.opf"))
	for _, href := range []string{"01-part/content.xhtml", "01-part/pic.png"} {
		if _, ok := hrefs[href]; ok {
			t.Errorf("%s must be excluded", href)
		}
	}
	if _, ok := hrefs["01-part/01-chapter/content.xhtml"]; !ok {
		t.Errorf("chapter of excluded part must be kept")
	}

	top := a.xml(t, "OEBPS/toc.ncx").FindElements("//navMap/navPoint")
	if len(top) != 1 {
		t.Fatalf("navMap has %d top level points", len(top))
	}
	if got := len(top[0].SelectElements("navPoint")); got != 2 {
		t.Errorf("book has %d nested points, chapter should move up", got)
	}

	var orders []string
	for _, np := range a.xml(t, "OEBPS/toc.ncx").FindElements("//navPoint") {
		orders = append(orders, np.SelectAttrValue("playOrder", ""))
	}
	if got := strings.Join(orders, " "); got != "1 2 3" {
		t.Errorf("play order = %s, want sequence without gaps", got)
	}
}

func TestExportBook_Destination(t *testing.T) {
	p, path := newPublisher(t, testConfig())

	nonEmpty := t.TempDir()
	writeFile(t, filepath.Join(nonEmpty, "old.txt"), "old")
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name string
		dst  string
	}{
		{"empty", ""},
		{"missing", missing},
		{"inside book", filepath.Join(path, "02-part")},
		{"book itself", path},
		{"contains book", filepath.Dir(path)},
		{"not empty", nonEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.ExportBook(context.Background(), "", publish.Options{Destination: tt.dst})
			if !errors.Is(err, publish.ErrDestinationInvalid) {
				t.Errorf("error = %v, want %v", err, publish.ErrDestinationInvalid)
			}
		})
	}

	if err := p.ExportBook(context.Background(), "", publish.Options{Destination: nonEmpty, Overwrite: true}); err != nil {
		t.Fatalf("ExportBook with overwrite: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nonEmpty, "old.txt")); !os.IsNotExist(err) {
		t.Errorf("destination was not emptied")
	}
	if _, err := os.Stat(filepath.Join(nonEmpty, "novel.epub")); err != nil {
		t.Errorf("book was not exported: %v", err)
	}
}

func TestExportBook_Canceled(t *testing.T) {
	p, _ := newPublisher(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.ExportBook(ctx, "", publish.Options{Destination: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v", err)
	}
}

func TestExportBook_UnknownBook(t *testing.T) {
	p, _ := newPublisher(t, testConfig())
	if err := p.ExportBook(context.Background(), "other", publish.Options{Destination: t.TempDir()}); !errors.Is(err, publish.ErrBookNotFound) {
		t.Errorf("error = %v", err)
	}
}

func TestExportBook_StylesheetAssets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "book.css"),
		`@font-face { font-family: "B"; src: url(fonts/b.ttf); } body { background: url("img/missing.png"); }`)
	writeFile(t, filepath.Join(dir, "fonts", "b.ttf"), "font")

	cfg := testConfig()
	cfg.StylesheetPath = filepath.Join(dir, "book.css")
	p, _ := newPublisher(t, cfg)
	dst := t.TempDir()
	if err := p.ExportBook(context.Background(), "", publish.Options{Destination: dst}); err != nil {
		t.Fatalf("ExportBook: %v", err)
	}
	a := readArchive(t, filepath.Join(dst, "novel.epub"))

	if _, ok := a.files["OEBPS/css/fonts/b.ttf"]; !ok {
		t.Errorf("font is missing from archive: %v", a.order)
	}
	hrefs := manifestHrefs(a.xml(t, "OEBPS/contents.opf"))
	if _, ok := hrefs["css/fonts/b.ttf"]; !ok {
		t.Errorf("font is missing from manifest: %v", hrefs)
	}
	if _, ok := hrefs["css/img/missing.png"]; ok {
		t.Errorf("missing file must not be listed")
	}
	if !strings.Contains(string(a.files["OEBPS/"+stylesheetName]), "@font-face") {
		t.Errorf("stylesheet was not copied")
	}
}

func TestExportBook_BookCover(t *testing.T) {
	p, path := newPublisher(t, testConfig())
	writeFile(t, filepath.Join(path, "cover.svg"),
		`<svg xmlns="http://www.w3.org/2000/svg" width="100" height="150" viewBox="0 0 100 150"><rect width="100" height="150" fill="red"/></svg>`)

	dst := t.TempDir()
	if err := p.ExportBook(context.Background(), "", publish.Options{Destination: dst}); err != nil {
		t.Fatalf("ExportBook: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, srcDir, oebpsDir, coverName))
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 300 {
		t.Errorf("cover is %dx%d, want 200x300", b.Dx(), b.Dy())
	}
	r, _, _, _ := img.At(100, 150).RGBA()
	if r>>8 < 200 {
		t.Errorf("cover was not taken from the book")
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name          string
		template      string
		transliterate bool
		want          string
	}{
		{"default", "{{ .Name }}", false, "novel.epub"},
		{"title and author", "{{ .Title }} - {{ .Author }}", false, "Great Novel - Jane Doe.epub"},
		{"transliterated", "{{ .Title }} {{ .Author }}", true, "great-novel-jane-doe.epub"},
		{"sprig", "{{ .Title | upper }}", false, "GREAT NOVEL.epub"},
		{"empty expansion", "{{ if false }}x{{ end }}", false, "novel.epub"},
		{"broken", "{{ .Title ", false, "novel.epub"},
		{"path separators", "a/b", false, "ab.epub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.OutputNameTemplate = tt.template
			cfg.FileNameTransliterate = tt.transliterate
			p, _ := newPublisher(t, cfg)
			book, err := p.shelf.Book("")
			if err != nil {
				t.Fatal(err)
			}
			e := &export{Publisher: p, book: book}
			if err := e.prepareMetadata(); err != nil {
				t.Fatal(err)
			}
			if got := e.outputName(); got != tt.want {
				t.Errorf("outputName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStylesheetRefs(t *testing.T) {
	data := []byte(`
@import url("base.css");
body { background: url(img/bg.png?v=1); }
.a { background: url('img/a.png#frag'); }
.b { background: url(data:image/png;base64,AAAA); }
.c { background: url(https://example.com/c.png); }
`)
	got := stylesheetRefs(data)
	want := []string{"base.css", "img/bg.png", "img/a.png"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("stylesheetRefs() = %v, want %v", got, want)
	}
}

func TestRelHref(t *testing.T) {
	tests := []struct {
		dir, target, want string
	}{
		{".", "content.xhtml", "content.xhtml"},
		{".", "a/b/content.xhtml", "a/b/content.xhtml"},
		{"a/b", "content.xhtml", "../../content.xhtml"},
		{"a/b", "a/pic.png", "../pic.png"},
		{"a", "a/c/content.xhtml", "c/content.xhtml"},
	}
	for _, tt := range tests {
		if got := relHref(tt.dir, tt.target); got != tt.want {
			t.Errorf("relHref(%q, %q) = %q, want %q", tt.dir, tt.target, got, tt.want)
		}
	}
}

func TestExportBook_NestedManifest(t *testing.T) {
	log := setupTestLogger(t)
	root := filepath.Join(t.TempDir(), "tiny")
	for _, dir := range []string{"", "a", filepath.Join("a", "b")} {
		writeFile(t, filepath.Join(root, dir, "content.xhtml"), "<p>x</p>")
		writeFile(t, filepath.Join(root, dir, node.MetaFile), "{}")
	}
	writeFile(t, filepath.Join(root, "a", "b", "photo.jpg"), "\xff\xd8\xff\xe0photo")

	shelf := publish.NewBookshelf(nil, log)
	if _, err := shelf.AddBook("", root); err != nil {
		t.Fatal(err)
	}
	p, err := New(shelf, content.NewRegistry(nil, nil, log), testConfig(), markup.Options{}, log)
	if err != nil {
		t.Fatal(err)
	}
	dst := t.TempDir()
	if err := p.ExportBook(context.Background(), "", publish.Options{Destination: dst}); err != nil {
		t.Fatalf("ExportBook: %v", err)
	}

	a := readArchive(t, filepath.Join(dst, "tiny.epub"))
	hrefs := manifestHrefs(a.xml(t, "OEBPS/contents.opf"))
	if len(hrefs) != 4+3 {
		t.Errorf("manifest has %d items: %v", len(hrefs), hrefs)
	}
	if got := hrefs["a/b/photo.jpg"]; got != "image/jpeg" {
		t.Errorf("photo media type = %q", got)
	}

	top := a.xml(t, "OEBPS/toc.ncx").FindElements("//navMap/navPoint")
	if len(top) != 1 {
		t.Fatalf("navMap has %d top level points", len(top))
	}
	level := top[0]
	for depth := 1; depth < 3; depth++ {
		next := level.SelectElements("navPoint")
		if len(next) != 1 {
			t.Fatalf("level %d has %d points", depth, len(next))
		}
		level = next[0]
	}
	if len(level.SelectElements("navPoint")) != 0 {
		t.Errorf("deepest document must have no nested points")
	}
}
