package extracthtml

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PrintMatches writes each element matched by selector to w, numbered, as
// collapsed text or outer HTML. It returns the match count. Used by the
// "inspect" command to try selectors before putting them in a layout.
func PrintMatches(w io.Writer, html, selector string, textOnly bool) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	matches := doc.Find(selector)
	matches.Each(func(i int, s *goquery.Selection) {
		fmt.Fprintf(w, "#%d\n", i+1)
		if textOnly {
			fmt.Fprintln(w, strings.Join(strings.Fields(s.Text()), " "))
			return
		}
		out, err := goquery.OuterHtml(s)
		if err != nil {
			out, _ = s.Html()
		}
		fmt.Fprintln(w, out)
	})
	return matches.Length(), nil
}
