package htmlx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<div class="last_episodes">
  <ul class="items">
    <li><div class="img"><img src="/a.jpg"></div><p class="name"><a href="/category/naruto">Naruto</a></p><p class="released">Released: 2002</p></li>
    <li><p class="name"><a href="/category/bleach">  Bleach
      </a></p></li>
  </ul>
</div>
<span itemprop="ratingValue">8.7</span>
</body></html>`

func TestFindHelpers(t *testing.T) {
	doc, err := Parse([]byte(page))
	require.NoError(t, err)

	names := FindAll(doc, Element("p", "name"))
	require.Len(t, names, 2)
	assert.Equal(t, "Naruto", Text(names[0]))
	assert.Equal(t, "Bleach", Text(names[1]))
	assert.Equal(t, "/category/bleach", FindAttr(names[1], Element("a"), "href"))

	assert.Equal(t, "/a.jpg", FindAttr(doc, Element("img"), "src"))
	assert.Equal(t, "8.7", FindText(doc, WithAttr("span", "itemprop", "ratingValue")))
	assert.Nil(t, Find(doc, Element("table")))
	assert.Equal(t, "", FindText(doc, Element("table")))
}

func TestFindAll_DoesNotDescendIntoMatches(t *testing.T) {
	doc, err := Parse([]byte(`<div class="x"><div class="x">inner</div></div>`))
	require.NoError(t, err)
	assert.Len(t, FindAll(doc, Element("div", "x")), 1)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Spike is a bounty hunter. He travels.", StripTags("Spike is a <i>bounty hunter</i>.<br>He travels."))
	assert.Equal(t, "", StripTags(""))
}
