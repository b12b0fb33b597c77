package epub

import (
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"vbook/misc"
	"vbook/node"
)

func writeXML(name string, doc *etree.Document) error {
	doc.Indent(2)
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}
	return doc.WriteToFile(name)
}

func newDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return doc
}

func (e *export) writeContainer() error {
	doc := newDocument()

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfiles := container.CreateElement("rootfiles")
	rootfile := rootfiles.CreateElement("rootfile")
	rootfile.CreateAttr("full-path", path.Join(oebpsDir, opfName))
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")

	return writeXML(filepath.Join(e.src, metaInfDir, "container.xml"), doc)
}

// writeDisplayOptions asks Apple Books to honor fonts of the stylesheet.
func (e *export) writeDisplayOptions() error {
	if !e.cfg.IBooksDisplayOptions {
		return nil
	}
	doc := newDocument()

	opts := doc.CreateElement("display_options")
	platform := opts.CreateElement("platform")
	platform.CreateAttr("name", "*")
	option := platform.CreateElement("option")
	option.CreateAttr("name", "specified-fonts")
	option.SetText("true")

	return writeXML(filepath.Join(e.src, metaInfDir, "com.apple.ibooks.display-options.xml"), doc)
}

func (e *export) writeOPF() error {
	doc := newDocument()

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("version", "2.0")
	pkg.CreateAttr("unique-identifier", "pub-id")

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	dcIdentifier := metadata.CreateElement("dc:identifier")
	dcIdentifier.CreateAttr("id", "pub-id")
	dcIdentifier.CreateAttr("opf:scheme", "uuid")
	dcIdentifier.SetText(e.guid)

	dcTitle := metadata.CreateElement("dc:title")
	dcTitle.SetText(e.title)

	dcLang := metadata.CreateElement("dc:language")
	dcLang.SetText(e.language)

	dcCreator := metadata.CreateElement("dc:creator")
	dcCreator.CreateAttr("opf:file-as", e.author)
	dcCreator.CreateAttr("opf:role", "aut")
	dcCreator.SetText(e.author)

	modified := metadata.CreateElement("meta")
	modified.CreateAttr("property", "dcterms:modified")
	modified.SetText(time.Now().UTC().Format("2006-01-02T15:04:05Z"))

	coverMeta := metadata.CreateElement("meta")
	coverMeta.CreateAttr("name", "cover")
	coverMeta.CreateAttr("content", "cover")

	manifest := pkg.CreateElement("manifest")
	addItem := func(id, href, mediaType string) *etree.Element {
		el := manifest.CreateElement("item")
		el.CreateAttr("id", id)
		el.CreateAttr("href", href)
		el.CreateAttr("media-type", mediaType)
		return el
	}
	for _, it := range e.items {
		addItem(it.id, it.href, it.mediaType)
	}
	addItem("cover", coverName, "image/png").CreateAttr("properties", "cover-image")
	addItem("ncx", ncxName, "application/x-dtbncx+xml")
	addItem("stylesheet", stylesheetName, "text/css")
	for _, a := range e.assets {
		addItem(a.id, a.href, a.mediaType)
	}

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")
	for _, it := range e.items {
		if it.node.IsDocument() {
			spine.CreateElement("itemref").CreateAttr("idref", it.id)
		}
	}

	return writeXML(filepath.Join(e.oebps, opfName), doc)
}

func (e *export) writeNCX() error {
	doc := newDocument()

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")
	ncx.CreateAttr("xml:lang", e.language)

	head := ncx.CreateElement("head")
	addMeta := func(name, content string) {
		meta := head.CreateElement("meta")
		meta.CreateAttr("name", name)
		meta.CreateAttr("content", content)
	}
	addMeta("dtb:uid", e.guid)
	addMeta("dtb:depth", strconv.Itoa(1+node.Depth(e.book.Toc())))
	addMeta("dtb:generator", misc.GetAppName()+" "+misc.GetVersion())
	addMeta("dtb:totalPageCount", "0")
	addMeta("dtb:maxPageNumber", "0")

	docTitle := ncx.CreateElement("docTitle")
	docTitle.CreateElement("text").SetText(e.title)

	navMap := ncx.CreateElement("navMap")
	included := make(map[string]item, len(e.items))
	for _, it := range e.items {
		if it.node.IsDocument() {
			included[it.node.Path()] = it
		}
	}
	e.buildNavPoints(navMap, e.book, included)

	return writeXML(filepath.Join(e.oebps, ncxName), doc)
}

// buildNavPoints nests navigation points like documents are nested.
// Children of excluded documents move up to the nearest included ancestor,
// play order counts emitted points only.
func (e *export) buildNavPoints(parent *etree.Element, n *node.Node, included map[string]item) {
	it, ok := included[n.Path()]
	if ok {
		navPoint := parent.CreateElement("navPoint")
		navPoint.CreateAttr("id", it.id)
		e.playOrder++
		navPoint.CreateAttr("playOrder", strconv.Itoa(e.playOrder))

		navLabel := navPoint.CreateElement("navLabel")
		navLabel.CreateElement("text").SetText(n.DisplayName())

		navPoint.CreateElement("content").CreateAttr("src", it.href)
		parent = navPoint
	}
	for _, c := range n.Children() {
		e.buildNavPoints(parent, c, included)
	}
}
