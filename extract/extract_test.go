package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><head><title> Example Shop </title><style>body{color:red}</style></head>
<body>
  <h1>Hello world</h1>
  <p>Buy <b>now</b></p>
  <script>var hidden = "not text";</script>
  <noscript>enable javascript</noscript>
  <a href="/about">About</a>
  <a href="https://other.test/x">Other</a>
  <a href="/about">About again</a>
  <a>no href</a>
  <img src="/logo.png"><img src="https://cdn.test/a.jpg"><img>
  <button onclick="go()">Go</button>
  <div role="button">Fake</div>
</body></html>`

func TestFromHTML(t *testing.T) {
	f, err := FromHTML(page, "https://shop.test/index.html")
	require.NoError(t, err)

	assert.Equal(t, "Hello world\nBuy\nnow\nAbout\nOther\nAbout again\nno href\nGo\nFake", f.InnerText)
	assert.Equal(t, []string{
		"https://shop.test/about",
		"https://other.test/x",
		"https://shop.test/about",
	}, f.Links)
	assert.Equal(t, []string{"https://shop.test/logo.png", "https://cdn.test/a.jpg"}, f.Images)
}

func TestFromHTML_NoBase(t *testing.T) {
	f, err := FromHTML(`<body><a href="/x">x</a></body>`, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/x"}, f.Links)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Example Shop", Title([]byte(page)))
	assert.Equal(t, "", Title([]byte("<p>untitled</p>")))
}

func TestCountClickable(t *testing.T) {
	// Three a[href], one button (also [onclick]), one [role=button].
	assert.Equal(t, 5, CountClickable(page))
	assert.Equal(t, 0, CountClickable("<p>static</p>"))
}

func TestValidSelector(t *testing.T) {
	assert.True(t, ValidSelector("#main > a:nth-of-type(2)"))
	assert.True(t, ValidSelector(`[data-id="x"]`))
	assert.False(t, ValidSelector(""))
	assert.False(t, ValidSelector("a[href"))
}
