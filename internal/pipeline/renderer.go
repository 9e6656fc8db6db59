package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ppiankov/haplo/internal/model"
)

// Renderer writes reports as JSON, Markdown, HTML and a console summary
type Renderer struct {
	threshold float64 // Top calls at or above this confidence are reliable
	treeURL   string
	familyURL string
}

// NewRenderer creates a renderer
func NewRenderer(confidenceThreshold float64) *Renderer {
	return &Renderer{threshold: confidenceThreshold}
}

// WithLinks makes HTML and Markdown output link haplogroups to
// <treeURL>/<source>/<kind>/<haplogroup> and families to <familyURL>/<id>.
// An empty base disables that kind of link.
func (r *Renderer) WithLinks(treeURL, familyURL string) *Renderer {
	r.treeURL = strings.TrimRight(treeURL, "/")
	r.familyURL = strings.TrimRight(familyURL, "/")
	return r
}

func (r *Renderer) haplogroupLink(run *model.RunResult, haplogroup string) string {
	if r.treeURL == "" || run.Source == "" || haplogroup == model.Unassigned {
		return ""
	}
	return r.treeURL + "/" + url.PathEscape(run.Source) + "/" + string(run.Kind) + "/" + url.PathEscape(haplogroup)
}

func (r *Renderer) familyLink(f model.Family) string {
	if r.familyURL == "" || f.ID == "" {
		return ""
	}
	return r.familyURL + "/" + url.PathEscape(f.ID)
}

// RenderReport writes the report to every configured output file and prints
// the summary to w
func (r *Renderer) RenderReport(report *model.Report, out model.OutputConfig, w io.Writer) error {
	outputs := []struct {
		path  string
		label string
		write func(io.Writer, *model.Report) error
	}{
		{out.JSON, "JSON", r.WriteJSON},
		{out.Markdown, "Markdown", r.WriteMarkdown},
		{out.HTML, "HTML", r.WriteHTML},
	}
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		if err := writeFile(o.path, report, o.write); err != nil {
			return fmt.Errorf("render %s: %w", o.label, err)
		}
		if out.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s: %s\n", o.label, o.path)
		}
	}

	r.WriteSummary(w, report)
	return nil
}

func writeFile(path string, report *model.Report, write func(io.Writer, *model.Report) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw, report); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteJSON writes the report as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteMarkdown writes one candidate table per run
func (r *Renderer) WriteMarkdown(w io.Writer, report *model.Report) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Haplogroups: %s\n\n", subjectLabel(report))
	fmt.Fprintf(&sb, "- Build: %s\n", report.Build)
	fmt.Fprintf(&sb, "- Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- Y calls: %d, mt calls: %d\n\n", report.YCalls, report.MTCalls)

	if len(report.Runs()) == 0 {
		sb.WriteString("No Y or mitochondrial observations.\n")
	}

	for _, run := range report.Runs() {
		fmt.Fprintf(&sb, "## %s haplogroup\n\n", run.Kind.Label())
		if run.Error != "" {
			fmt.Fprintf(&sb, "Classification failed: %s\n\n", run.Error)
			continue
		}
		if len(run.Candidates) == 0 {
			sb.WriteString("No haplogroup could be assigned.\n\n")
			continue
		}
		if line := treeLine(run); line != "" {
			fmt.Fprintf(&sb, "Tree: %s\n\n", line)
		}

		sb.WriteString("| Haplogroup | Derived SNPs | Depth | Confidence |\n")
		sb.WriteString("|---|---:|---:|---:|\n")
		for i, c := range run.Candidates {
			name := c.Haplogroup
			if link := r.haplogroupLink(run, c.Haplogroup); link != "" {
				name = "[" + name + "](" + link + ")"
			}
			if i == 0 {
				name = "**" + name + "**"
			}
			fmt.Fprintf(&sb, "| %s | %d | %d | %s |\n", name, c.DerivedCount, c.Depth, percent(c.Confidence))
		}
		sb.WriteString("\n")

		if len(run.Lineages) > 0 {
			sb.WriteString("Linked families:\n\n")
			for _, l := range run.Lineages {
				names := make([]string, len(l.Families))
				for i, f := range l.Families {
					names[i] = familyName(f)
					if link := r.familyLink(f); link != "" {
						names[i] = "[" + names[i] + "](" + link + ")"
					}
				}
				fmt.Fprintf(&sb, "- %s%s: %s\n", l.Haplogroup, ageSuffix(l), strings.Join(names, ", "))
			}
			sb.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteHTML writes a standalone page with one candidate table per run
func (r *Renderer) WriteHTML(w io.Writer, report *model.Report) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, attr("charset", "utf-8")))
	head.AppendChild(withText(element(atom.Title), "Haplogroups: "+subjectLabel(report)))
	root.AppendChild(head)

	body := element(atom.Body)
	root.AppendChild(body)
	body.AppendChild(withText(element(atom.H1), "Haplogroups: "+subjectLabel(report)))
	body.AppendChild(withText(element(atom.P),
		fmt.Sprintf("Build %s, %d Y calls, %d mt calls", report.Build, report.YCalls, report.MTCalls)))

	for _, run := range report.Runs() {
		body.AppendChild(r.runTable(run))
	}

	return html.Render(w, doc)
}

func (r *Renderer) runTable(run *model.RunResult) *html.Node {
	div := element(atom.Div, attr("class", "table-responsive"))

	if run.Error != "" || len(run.Candidates) == 0 {
		msg := "No " + run.Kind.Label() + " haplogroup could be assigned."
		if run.Error != "" {
			msg = run.Kind.Label() + " classification failed: " + run.Error
		}
		div.AppendChild(withText(element(atom.P), msg))
		return div
	}

	if line := treeLine(run); line != "" {
		div.AppendChild(withText(element(atom.P), "Tree: "+line))
	}

	table := element(atom.Table, attr("class", "table"))
	div.AppendChild(table)

	thead := element(atom.Thead)
	hr := element(atom.Tr)
	for _, h := range []string{run.Kind.Label() + " haplogroup", "Derived SNPs", "Depth", "Confidence"} {
		hr.AppendChild(withText(element(atom.Th), h))
	}
	thead.AppendChild(hr)
	table.AppendChild(thead)

	tbody := element(atom.Tbody)
	for i, c := range run.Candidates {
		tr := element(atom.Tr)
		if i == 0 {
			tr.Attr = append(tr.Attr, attr("class", "top"))
		}
		name := element(atom.Td)
		if link := r.haplogroupLink(run, c.Haplogroup); link != "" {
			name.AppendChild(withText(element(atom.A, attr("href", link), attr("target", "_blank")), c.Haplogroup))
		} else {
			withText(name, c.Haplogroup)
		}
		tr.AppendChild(name)
		for _, cell := range []string{strconv.Itoa(c.DerivedCount), strconv.Itoa(c.Depth), percent(c.Confidence)} {
			tr.AppendChild(withText(element(atom.Td), cell))
		}
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)

	if len(run.Lineages) > 0 {
		div.AppendChild(r.lineageList(run.Lineages))
	}
	return div
}

func (r *Renderer) lineageList(lineages []model.Lineage) *html.Node {
	div := element(atom.Div, attr("class", "lineages"))
	div.AppendChild(withText(element(atom.P), "Linked families"))

	ul := element(atom.Ul)
	for _, l := range lineages {
		li := withText(element(atom.Li), l.Haplogroup+ageSuffix(l)+" ")
		for _, f := range l.Families {
			badge := withText(element(atom.Span, attr("class", "badge")), f.Surname)
			entry := element(atom.Span)
			if link := r.familyLink(f); link != "" {
				entry = element(atom.A, attr("href", link), attr("target", "_blank"))
			}
			entry.AppendChild(badge)
			withText(entry, f.Title)
			li.AppendChild(entry)
		}
		ul.AppendChild(li)
	}
	div.AppendChild(ul)
	return div
}

// WriteSummary prints the top call per kind
func (r *Renderer) WriteSummary(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "\n%s (build %s)\n", subjectLabel(report), report.Build)

	if len(report.Runs()) == 0 {
		fmt.Fprintln(w, "  No Y or mt observations in input")
		return
	}

	for _, run := range report.Runs() {
		label := fmt.Sprintf("  %-3s", run.Kind.Label())
		if run.Error != "" {
			fmt.Fprintf(w, "%s ✗ failed: %s\n", label, run.Error)
			continue
		}
		top, ok := run.Top()
		if !ok {
			fmt.Fprintf(w, "%s no haplogroup assigned\n", label)
			continue
		}

		verdict := "✓"
		if top.Confidence < r.threshold {
			verdict = "? low confidence"
		}
		fmt.Fprintf(w, "%s %s  derived %d, depth %d, confidence %s %s\n",
			label, top.Haplogroup, top.DerivedCount, top.Depth, percent(top.Confidence), verdict)
		if line := treeLine(run); line != "" {
			fmt.Fprintf(w, "      tree: %s\n", line)
		}
		for _, l := range run.Lineages {
			names := make([]string, len(l.Families))
			for i, f := range l.Families {
				names[i] = familyName(f)
			}
			fmt.Fprintf(w, "      family %s%s: %s\n", l.Haplogroup, ageSuffix(l), strings.Join(names, ", "))
		}
	}
}

// treeLine describes the tree a run classified against, e.g. "MF Y tree, 12,345 haplogroups (2024-03-01)"
func treeLine(run *model.RunResult) string {
	if run.Source == "" && run.Stats.Nodes == 0 {
		return ""
	}
	var sb strings.Builder
	if run.Source != "" {
		sb.WriteString(strings.ToUpper(run.Source) + " ")
	}
	sb.WriteString(run.Kind.Label() + " tree")
	if run.Stats.Nodes > 0 {
		fmt.Fprintf(&sb, ", %s haplogroups", thousands(run.Stats.Nodes))
	}
	if run.Timestamp != "" {
		fmt.Fprintf(&sb, " (%s)", run.Timestamp)
	}
	return sb.String()
}

func familyName(f model.Family) string {
	if f.Title == "" {
		return f.Surname
	}
	if f.Surname == "" || strings.Contains(f.Title, f.Surname) {
		return f.Title
	}
	return f.Surname + " " + f.Title
}

func ageSuffix(l model.Lineage) string {
	if l.Age == "" {
		return ""
	}
	return " (common ancestor " + l.Age + " years ago)"
}

// thousands formats n with comma separators
func thousands(n int) string {
	if n < 0 {
		return "-" + thousands(-n)
	}
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

func subjectLabel(report *model.Report) string {
	if report.Subject == "" {
		return "subject"
	}
	return report.Subject
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
