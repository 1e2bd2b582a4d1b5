package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Selector locates a single element of the page. Exactly one of ID, CSS or XPath
// is expected to be set. Shadow lists the shadow hosts to traverse before the CSS
// selector is applied, outermost host first; it is ignored for ID and XPath.
type Selector struct {
	ID     string   `mapstructure:"id" yaml:"id,omitempty" json:"id,omitempty"`
	CSS    string   `mapstructure:"css" yaml:"css,omitempty" json:"css,omitempty"`
	XPath  string   `mapstructure:"xpath" yaml:"xpath,omitempty" json:"xpath,omitempty"`
	Shadow []string `mapstructure:"shadow" yaml:"shadow,omitempty" json:"shadow,omitempty"`
}

func ByID(id string) Selector {
	return Selector{ID: id}
}

// ByCSS selects with a css selector, walking through the shadow roots of the given
// hosts first.
func ByCSS(css string, shadowHosts ...string) Selector {
	return Selector{CSS: css, Shadow: shadowHosts}
}

func ByXPath(xpath string) Selector {
	return Selector{XPath: xpath}
}

func (s Selector) IsZero() bool {
	return s.ID == "" && s.CSS == "" && s.XPath == ""
}

func (s Selector) String() string {
	switch {
	case s.ID != "":
		return "#" + s.ID
	case s.XPath != "":
		return "xpath:" + s.XPath
	case s.CSS != "" && len(s.Shadow) > 0:
		return fmt.Sprintf("%s >>> %s", strings.Join(s.Shadow, " >>> "), s.CSS)
	default:
		return s.CSS
	}
}

// JSPath returns a javascript expression evaluating to the selected element, or
// to null when it is absent.
func (s Selector) JSPath() string {
	switch {
	case s.ID != "":
		return fmt.Sprintf("document.getElementById(%s)", jsString(s.ID))
	case s.XPath != "":
		return fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", jsString(s.XPath))
	case s.CSS != "":
		sb := strings.Builder{}
		sb.WriteString("document")
		for _, host := range s.Shadow {
			fmt.Fprintf(&sb, "?.querySelector(%s)?.shadowRoot", jsString(host))
		}
		fmt.Fprintf(&sb, "?.querySelector(%s)", jsString(s.CSS))
		return "(" + sb.String() + " ?? null)"
	default:
		return "null"
	}
}

func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal never fails on a string
		return `""`
	}
	return string(b)
}
