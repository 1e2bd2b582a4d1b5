package report

import (
	"embed"
	"encoding/base64"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/alecthomas/units"
	"github.com/glimps-re/autovt/pkg/datamodel"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

type renderer interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

type headerData struct {
	Session *Session
	Flagged bool
}

type entryData struct {
	Session *Session
	Report  datamodel.Report
	Embed   bool
}

func parseTemplates(format Format) (r renderer, err error) {
	switch format {
	case HTML:
		funcs := sprig.FuncMap()
		funcs["fileURL"] = func(path string) htmltemplate.URL { return htmltemplate.URL(fileURL(path)) }
		funcs["dataURI"] = func(png []byte) htmltemplate.URL { return htmltemplate.URL(dataURI(png)) }
		funcs["humanBytes"] = humanBytes
		return htmltemplate.New("report").Funcs(funcs).ParseFS(templatesFS, "templates/report.html.tmpl")
	case Markdown:
		funcs := sprig.TxtFuncMap()
		funcs["fileURL"] = fileURL
		funcs["relURL"] = relURL
		funcs["mdEscape"] = mdEscape
		funcs["dataURI"] = dataURI
		funcs["humanBytes"] = humanBytes
		return texttemplate.New("report").Funcs(funcs).ParseFS(templatesFS, "templates/report.md.tmpl")
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

func relURL(path string) string {
	u := url.URL{Path: filepath.ToSlash(path)}
	return u.EscapedPath()
}

var mdEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"`", "\\`",
	"*", "\\*",
	"_", "\\_",
	"[", "\\[",
	"]", "\\]",
	"#", "\\#",
	"<", "\\<",
	">", "\\>",
	"\r", " ",
	"\n", " ",
)

// mdEscape keeps text on one line and out of markdown syntax.
func mdEscape(text string) string {
	return mdEscaper.Replace(text)
}

func dataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

func humanBytes(n int64) string {
	switch {
	case n >= int64(units.GiB):
		return fmt.Sprintf("%.1f GiB", float64(n)/float64(units.GiB))
	case n >= int64(units.MiB):
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(units.MiB))
	case n >= int64(units.KiB):
		return fmt.Sprintf("%.1f KiB", float64(n)/float64(units.KiB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
