package markup

import (
	"errors"
	"fmt"
	"html"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// imgElement writes self-closed img with all attributes.
type imgElement struct{}

func (imgElement) Start(_ *Context, el *Element) (string, error) {
	return "<img" + el.AttrString() + "/>", nil
}

func (imgElement) Data(*Context, *Element, string) (string, error) {
	return "", nil
}

func (imgElement) End(*Context, *Element) (string, error) {
	return "", nil
}

// quoteElement renders block or inline quotation with its source.
type quoteElement struct{}

func (quoteElement) inline(el *Element) bool {
	return el.Attr("inline", "false") != "false"
}

func (q quoteElement) Start(_ *Context, el *Element) (string, error) {
	el.Capture()
	if q.inline(el) {
		return "<q>", nil
	}
	return "<blockquote>", nil
}

func (quoteElement) Data(_ *Context, _ *Element, data string) (string, error) {
	return html.EscapeString(data), nil
}

func (q quoteElement) End(_ *Context, el *Element) (string, error) {
	source := "<em>unknown source</em>"
	if el.HasAttr("href") {
		href := html.EscapeString(el.Attr("href", ""))
		source = `<em><small><strong>Source @ </strong><a target="_blank" href="` + href + `">` + href + `</a></small></em>`
	}
	text := strings.TrimSpace(el.Captured())
	if q.inline(el) {
		return text + "</q>(" + source + ")", nil
	}
	return text + "<br/>" + source + "</blockquote>", nil
}

// footnoteElement leaves numbered reference in place and lists all notes at
// the end of the document.
type footnoteElement struct {
	index int
}

func (f *footnoteElement) Start(pc *Context, el *Element) (string, error) {
	f.index = len(pc.footnotes)
	if f.index == 0 {
		pc.OnFinish(listFootnotes)
	}
	pc.footnotes = append(pc.footnotes, footnote{href: el.Attr("href", "")})
	el.Capture()
	return `<em class="footnote">`, nil
}

func (f *footnoteElement) Data(_ *Context, _ *Element, data string) (string, error) {
	return html.EscapeString(data), nil
}

func (f *footnoteElement) End(pc *Context, el *Element) (string, error) {
	pc.footnotes[f.index].caption = el.Captured()
	return fmt.Sprintf(`<sup><a href="#footnote_%d">[%d]</a></sup></em>`, f.index+1, f.index+1), nil
}

func listFootnotes(pc *Context) (string, error) {
	if len(pc.footnotes) == 0 {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString("\n<ol class=\"footnotes\">\n")
	for i, fn := range pc.footnotes {
		if len(fn.href) > 0 {
			fmt.Fprintf(&sb, "<li><a id=\"footnote_%d\" href=\"%s\" target=\"_blank\">%s</a></li>\n", i+1, html.EscapeString(fn.href), fn.caption)
		} else {
			fmt.Fprintf(&sb, "<li><a id=\"footnote_%d\"></a><em>%s</em></li>\n", i+1, fn.caption)
		}
	}
	sb.WriteString("</ol>\n")
	pc.footnotes = nil
	return sb.String(), nil
}

// glossaryElement collects term descriptions, emitted sorted at the end of
// the document.
type glossaryElement struct {
	term string
}

func ucFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func (g *glossaryElement) Start(pc *Context, el *Element) (string, error) {
	term := el.Attr("term", "")
	if len(term) == 0 {
		return "", fmt.Errorf("attribute \"term\" is required and can not be empty: %w", ErrElement)
	}
	if len(pc.glossary) == 0 {
		pc.OnFinish(listGlossary)
	}
	g.term = ucFirst(term)
	pc.glossary[g.term] = ""
	el.Capture()
	return "", nil
}

func (g *glossaryElement) Data(_ *Context, _ *Element, data string) (string, error) {
	return html.EscapeString(data), nil
}

func (g *glossaryElement) End(pc *Context, el *Element) (string, error) {
	pc.glossary[g.term] = el.Captured()
	return "", nil
}

func listGlossary(pc *Context) (string, error) {
	var sb strings.Builder
	for _, term := range slices.Sorted(maps.Keys(pc.glossary)) {
		t := html.EscapeString(term)
		sb.WriteString(`<div class="glossaryEntry" id="` + t + `">`)
		sb.WriteString(`<div class="glossaryTerm">` + t + `</div>`)
		sb.WriteString(`<div class="glossaryDescription">` + pc.glossary[term] + "</div></div>\n")
	}
	return sb.String(), nil
}

// nodeLink links another node of the same book. Content is a template with
// {{NAME}}, {{DISPLAY_NAME}}, {{INDEX}} and {{URI}} placeholders.
type nodeLink struct{}

func (*nodeLink) Start(_ *Context, el *Element) (string, error) {
	el.Capture()
	return "", nil
}

func (*nodeLink) Data(_ *Context, _ *Element, data string) (string, error) {
	return html.EscapeString(data), nil
}

func (*nodeLink) End(pc *Context, el *Element) (string, error) {
	if pc.Node == nil {
		return "", fmt.Errorf("no current node: %w", ErrElement)
	}
	target, self := pc.Node, true
	if el.HasAttr("path") {
		self = false
		path := el.Attr("path", "")
		root, err := pc.Node.Root()
		if err != nil {
			return "", err
		}
		if target, err = root.Child(path); err != nil {
			pc.Log.Debug("Linked node not found", zap.String("path", path), zap.Error(err))
			return `<blockquote class="error">volta:node: Node "<strong>` + html.EscapeString(path) + `</strong>" not found!</blockquote>`, nil
		}
	}
	title := html.EscapeString(el.Attr("title", target.Name()))
	uri := html.EscapeString(target.URI())
	text := strings.NewReplacer(
		"{{NAME}}", html.EscapeString(target.Name()),
		"{{DISPLAY_NAME}}", html.EscapeString(target.DisplayName()),
		"{{INDEX}}", strconv.Itoa(target.Index()),
		"{{URI}}", uri,
	).Replace(el.Captured())
	if self {
		return `<span class="volta-node" title="` + title + `">` + text + `</span>`, nil
	}
	return `<a class="volta-node" href="` + uri + `" title="` + title + `">` + text + `</a>`, nil
}

// quizElement is a form of questions submitted back to the same page.
type quizElement struct{}

func (quizElement) Start(pc *Context, _ *Element) (string, error) {
	pc.quiz++
	return fmt.Sprintf("\n<form action=\"#quiz-%d\" method=\"get\" class=\"quiz\" id=\"quiz-%d\">\n", pc.quiz, pc.quiz), nil
}

func (quizElement) Data(_ *Context, _ *Element, data string) (string, error) {
	if data = deepTrim(data); len(data) == 0 {
		return "", nil
	}
	return "\n<div class=\"quiz-data\">" + html.EscapeString(data) + "</div>\n", nil
}

func (quizElement) End(pc *Context, _ *Element) (string, error) {
	return `<div class="buttons"><button>` + html.EscapeString(pc.Opts.QuizButton) + `</button></div></form>`, nil
}

var errQuestionParent = errors.New("question must be inside a quiz element")

type questionElement struct{}

func (questionElement) Start(pc *Context, el *Element) (string, error) {
	if el.Parent == nil || !el.Parent.Is(Namespace, "quiz") {
		parent := "none"
		if el.Parent != nil {
			parent = el.Parent.QName()
		}
		return "", fmt.Errorf("%w, currently in: %s: %w", errQuestionParent, parent, ErrElement)
	}
	pc.question++
	return fmt.Sprintf("\n<div class=\"question\" id=\"question-%d-%d\">", pc.quiz, pc.question), nil
}

func (questionElement) Data(_ *Context, _ *Element, data string) (string, error) {
	if data = deepTrim(data); len(data) == 0 {
		return "", nil
	}
	return "\n  <span class=\"question-data\">" + html.EscapeString(data) + "</span>", nil
}

func (questionElement) End(*Context, *Element) (string, error) {
	return "\n</div>\n", nil
}

// answerElement is a radio button, selection and correctness are echoed from
// the submitted query.
type answerElement struct{}

func (answerElement) Start(pc *Context, el *Element) (string, error) {
	pc.answer++
	name := fmt.Sprintf("question-%d-%d", pc.quiz, pc.question)
	id := fmt.Sprintf("answer-%d-%d-%d", pc.quiz, pc.question, pc.answer)
	value, _ := strconv.Atoi(strings.TrimSpace(el.Attr("value", "0")))

	checked, status := "", "unknown"
	if pc.Query.Has(name) && pc.Query.Get(name) == id {
		checked = "checked"
		switch value {
		case 0:
			status = "error"
		case 1:
			status = "correct"
		}
	}

	var sb strings.Builder
	sb.WriteString("\n  <div class=\"answer-container\">")
	sb.WriteString("\n    <input type=\"radio\" " + checked + " name=\"" + name + "\" class=\"answer\" id=\"" + id + "\" value=\"" + id + "\"/>")
	sb.WriteString("\n    <span class=\"answer-status  " + status + "\">&nbsp;</span><label for=\"" + id + "\" class=\"answer-data\">")
	return sb.String(), nil
}

func (answerElement) Data(_ *Context, _ *Element, data string) (string, error) {
	return html.EscapeString(deepTrim(data)), nil
}

func (answerElement) End(*Context, *Element) (string, error) {
	return "</label>\n  </div>", nil
}
