package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrimaryLink(t *testing.T) {
	t.Run("验证链接得分高于普通链接", func(t *testing.T) {
		html := `<p><a href="https://shop.example.com/sale">Big sale</a>` +
			`<a href="https://auth.example.com/verify?code=abc">Verify your email</a></p>`

		assert.Equal(t, "https://auth.example.com/verify?code=abc", PrimaryLink(html, ""))
	})

	t.Run("退订链接和静态资源被排除", func(t *testing.T) {
		html := `<a href="https://example.com/unsubscribe?u=1">unsubscribe</a>` +
			`<img src="x"><a href="https://cdn.example.com/logo.png">logo</a>` +
			`<a href="https://example.com/welcome">welcome</a>`

		assert.Equal(t, "https://example.com/welcome", PrimaryLink(html, ""))
	})

	t.Run("携带token参数的链接加分", func(t *testing.T) {
		html := `<a href="https://example.com/page">page</a>` +
			`<a href="https://example.com/open?token=xyz">open</a>`

		assert.Equal(t, "https://example.com/open?token=xyz", PrimaryLink(html, ""))
	})

	t.Run("同分时保持出现顺序", func(t *testing.T) {
		html := `<a href="https://example.com/first">a</a>` +
			`<a href="https://example.com/second">b</a>`

		assert.Equal(t, "https://example.com/first", PrimaryLink(html, ""))
	})

	t.Run("HTML无链接时回退纯文本", func(t *testing.T) {
		text := "Click here: https://example.com/confirm?x=1 to continue"

		assert.Equal(t, "https://example.com/confirm?x=1", PrimaryLink("<p>no links</p>", text))
	})

	t.Run("纯文本多个无关键词链接时取先出现的", func(t *testing.T) {
		text := "See https://first.example.com/a and https://second.example.com/b"

		assert.Equal(t, "https://first.example.com/a", PrimaryLink("", text))
	})

	t.Run("HTML有链接时不读取纯文本", func(t *testing.T) {
		html := `<a href="https://example.com/html-link">x</a>`
		text := "https://example.com/text-link"

		assert.Equal(t, "https://example.com/html-link", PrimaryLink(html, text))
	})

	t.Run("土耳其文关键词同样命中", func(t *testing.T) {
		html := `<a href="https://example.com/haber">haber</a>` +
			`<a href="https://example.com/onayla">hesabını onayla</a>`

		assert.Equal(t, "https://example.com/onayla", PrimaryLink(html, ""))
	})

	t.Run("无任何候选时返回空串", func(t *testing.T) {
		assert.Empty(t, PrimaryLink("<p>plain</p>", "no links here"))
		assert.Empty(t, PrimaryLink("", ""))
	})
}

func TestSafeAnchors(t *testing.T) {
	t.Run("无target属性时补全", func(t *testing.T) {
		html := `<a href="https://example.com/x">x</a>`

		assert.Equal(t,
			`<a target="_blank" rel="noopener noreferrer" href="https://example.com/x">x</a>`,
			SafeAnchors(html))
	})

	t.Run("已有target属性时覆盖", func(t *testing.T) {
		html := `<a target="_self" href="https://example.com/x">x</a>`

		assert.Equal(t,
			`<a target="_blank" rel="noopener noreferrer" href="https://example.com/x">x</a>`,
			SafeAnchors(html))
	})

	t.Run("单引号href同样处理", func(t *testing.T) {
		html := `<a href='https://example.com/x'>x</a>`

		assert.Contains(t, SafeAnchors(html), `target="_blank" rel="noopener noreferrer"`)
	})

	t.Run("非链接标签原样保留", func(t *testing.T) {
		html := `<p>hello</p><img src="x.png">`

		assert.Equal(t, html, SafeAnchors(html))
	})
}

func TestLinkifyText(t *testing.T) {
	t.Run("链接转为新窗口锚点", func(t *testing.T) {
		got := LinkifyText("Click here: https://example.com/verify?token=abc to confirm")

		assert.Equal(t,
			`Click here: <a href="https://example.com/verify?token=abc" target="_blank" rel="noopener noreferrer">https://example.com/verify?token=abc</a> to confirm`,
			got)
	})

	t.Run("普通文本被转义", func(t *testing.T) {
		assert.Equal(t, "1 &lt; 2 &amp; 3", LinkifyText("1 < 2 & 3"))
	})

	t.Run("换行转为br", func(t *testing.T) {
		assert.Equal(t, "line1<br>line2", LinkifyText("line1\nline2"))
	})

	t.Run("空文本返回空串", func(t *testing.T) {
		assert.Equal(t, "", LinkifyText(""))
	})
}
