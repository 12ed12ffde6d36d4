package utils

import (
	"strings"

	"golang.org/x/net/html"
)

// telegramTags are the formatting tags Telegram's HTML parse mode accepts.
var telegramTags = map[string]bool{
	"b": true, "strong": true, "i": true, "em": true, "u": true, "ins": true,
	"s": true, "strike": true, "del": true, "a": true, "code": true, "pre": true,
}

// voidTags never have an end tag and are not tracked as open.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true, "wbr": true,
}

// openTag is an element on the open stack; emitted tags were written to the output.
type openTag struct {
	name    string
	emitted bool
}

// FilterHTML reduces an assignment description to Telegram-safe HTML and
// collects the image sources it referenced. Output tags are always balanced:
// stray end tags are dropped, closing a parent closes everything opened
// inside it, and whatever is still open at the end is closed.
func FilterHTML(content string) (string, []string) {
	var (
		out    strings.Builder
		images []string
		stack  []openTag
	)

	// closeTo pops through the innermost element named tag.
	closeTo := func(tag string) bool {
		at := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].name == tag {
				at = i
				break
			}
		}
		if at < 0 {
			return false
		}
		for i := len(stack) - 1; i >= at; i-- {
			if stack[i].emitted {
				out.WriteString("</" + stack[i].name + ">")
			}
		}
		stack = stack[:at]
		return true
	}

	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch tt := z.Next(); tt {
		case html.ErrorToken:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].emitted {
					out.WriteString("</" + stack[i].name + ">")
				}
			}
			return strings.TrimSpace(out.String()), images

		case html.TextToken:
			out.WriteString(html.EscapeString(string(z.Text())))

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			attrs := map[string]string{}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attrs[string(key)] = string(val)
			}

			switch {
			case tag == "img":
				if src := attrs["src"]; src != "" {
					images = append(images, src)
				}
			case tag == "br":
				out.WriteString("\n")
			}
			if tt == html.SelfClosingTagToken || voidTags[tag] {
				continue
			}

			emitted := false
			switch {
			case tag == "a":
				if href := attrs["href"]; href != "" {
					out.WriteString(`<a href="` + html.EscapeString(href) + `">`)
					emitted = true
				}
			case telegramTags[tag]:
				out.WriteString("<" + tag + ">")
				emitted = true
			}
			stack = append(stack, openTag{name: tag, emitted: emitted})

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if closeTo(tag) && tag == "p" {
				out.WriteString("\n")
			}
		}
	}
}
