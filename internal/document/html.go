package document

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// narrativeText returns the visible body text of an HTML filing with hidden
// inline XBRL headers, scripts and styles removed.
func narrativeText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find(`script, style, head, ix\:header`).Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		return clean(doc.Text()), nil
	}
	return clean(body.Text()), nil
}
