package extract

import (
	"html"
	"regexp"
	"sort"
	"strings"
)

// 主行动链接的关键词，覆盖英文和土耳其文的常见验证场景。
// 命中关键词加 2 分，链接中携带 token 或 id= 参数再加 1 分。
var actionKeywords = []string{
	"verify", "confirm", "activate", "login", "sign in",
	"doğrula", "onayla", "giris", "password", "şifre",
}

var (
	hrefPattern     = regexp.MustCompile(`(?i)href=["'](https?://[^"']+)["']`)
	textLinkPattern = regexp.MustCompile(`https?://\S+`)
	excludePattern  = regexp.MustCompile(`(?i)(unsubscribe|css|jpg|png|gif|font)`)

	anchorPattern = regexp.MustCompile(`(?i)<a\s+(?:[^>]*?\s+)?href=("[^"]*"|'[^']*')`)
	targetPattern = regexp.MustCompile(`(?i)target=["'][^"']*["']`)
)

// PrimaryLink 从 HTML 正文中提取最可能的主行动链接。
//
// 先收集 HTML 中所有 href 指向的 http(s) 链接，排除退订链接和静态资源；
// HTML 中一个都没有时退回扫描纯文本正文。多个候选时按关键词打分取最高，
// 同分保持出现顺序。没有任何候选时返回空串。
func PrimaryLink(html, text string) string {
	var links []string
	for _, m := range hrefPattern.FindAllStringSubmatch(html, -1) {
		if excludePattern.MatchString(m[1]) {
			continue
		}
		links = append(links, m[1])
	}

	if len(links) == 0 && text != "" {
		links = textLinkPattern.FindAllString(text, -1)
	}

	switch len(links) {
	case 0:
		return ""
	case 1:
		return links[0]
	}

	type scored struct {
		link  string
		score int
	}
	candidates := make([]scored, 0, len(links))
	for _, link := range links {
		lower := strings.ToLower(link)
		score := 0
		for _, keyword := range actionKeywords {
			if strings.Contains(lower, keyword) {
				score += 2
				break
			}
		}
		if strings.Contains(lower, "token") || strings.Contains(lower, "id=") {
			score++
		}
		candidates = append(candidates, scored{link: link, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates[0].link
}

// LinkifyText 把纯文本正文转成可安全渲染的 HTML 片段。
// 文本整体转义，其中的 http(s) 链接替换为在新窗口打开的锚点，换行转为 <br>。
func LinkifyText(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	last := 0
	for _, loc := range textLinkPattern.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		url := text[loc[0]:loc[1]]
		b.WriteString(`<a href="` + html.EscapeString(url) + `" target="_blank" rel="noopener noreferrer">`)
		b.WriteString(html.EscapeString(url))
		b.WriteString(`</a>`)
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))

	return strings.ReplaceAll(b.String(), "\n", "<br>")
}

// SafeAnchors 把 HTML 中所有 <a href=...> 改写成在新窗口打开。
// 已有 target 属性的直接替换，没有的补上 target 和 rel。
func SafeAnchors(html string) string {
	return anchorPattern.ReplaceAllStringFunc(html, func(anchor string) string {
		if targetPattern.MatchString(anchor) {
			return targetPattern.ReplaceAllString(anchor, `target="_blank" rel="noopener noreferrer"`)
		}
		return strings.Replace(anchor, "<a ", `<a target="_blank" rel="noopener noreferrer" `, 1)
	})
}
