package blocklist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(name string) []string {
	return strings.Split(name, ".")
}

func Test_BlockList(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("ads.example.com"))

	assert.True(t, b.Match(labels("ads.example.com")))
	assert.True(t, b.Match(labels("x.ads.example.com")))
	assert.True(t, b.Match(labels("a.b.c.ads.example.com")))
	assert.False(t, b.Match(labels("example.com")))
	assert.False(t, b.Match(labels("com")))
	assert.False(t, b.Match(labels("ads.example.co")))
	assert.False(t, b.Match(labels("bads.example.com")))
	assert.False(t, b.Match(labels("ads.example.com.evil")))
	assert.False(t, b.Match(nil))

	assert.True(t, b.Match(labels("ADS.Example.COM")))
	assert.True(t, b.MatchName("x.ads.example.com."))
	assert.False(t, b.MatchName(""))
	assert.Equal(t, 1, b.Len())
}

func Test_BlockListEmpty(t *testing.T) {
	var nilList *Blocklist
	assert.False(t, nilList.Match(labels("ads.example.com")))
	assert.False(t, nilList.MatchName("example.com"))
	assert.Zero(t, nilList.Len())

	b := New()
	for _, name := range []string{"ads.example.com", "com", "a", ""} {
		assert.False(t, b.Match(labels(name)), name)
	}
}

func Test_BlockListDuplicates(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("ads.example.com"))
	nodes := len(b.nodes)

	require.NoError(t, b.Insert("ads.example.com"))
	require.NoError(t, b.Insert("ADS.example.com."))
	assert.Equal(t, nodes, len(b.nodes))
	assert.Equal(t, 1, b.Len())
}

func Test_BlockListOverlap(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("example.com"))
	require.NoError(t, b.Insert("ads.example.com"))

	// the parent stays blocked whatever the insertion order
	assert.True(t, b.MatchName("example.com"))
	assert.True(t, b.MatchName("ads.example.com"))
	assert.Equal(t, 1, b.Len())

	b = New()
	require.NoError(t, b.Insert("ads.example.com"))
	require.NoError(t, b.Insert("track.example.com"))
	assert.False(t, b.MatchName("example.com"))
	assert.False(t, b.MatchName("www.example.com"))

	require.NoError(t, b.Insert("example.com"))
	assert.True(t, b.MatchName("example.com"))
	assert.True(t, b.MatchName("www.example.com"))
}

func Test_BlockListSiblings(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("ads.example.com"))
	require.NoError(t, b.Insert("tracker.example.com"))
	require.NoError(t, b.Insert("doubleclick.net"))

	assert.True(t, b.MatchName("ads.example.com"))
	assert.True(t, b.MatchName("tracker.example.com"))
	assert.True(t, b.MatchName("stats.g.doubleclick.net"))
	assert.False(t, b.MatchName("www.example.com"))
	assert.False(t, b.MatchName("example.com"))
	assert.False(t, b.MatchName("net"))
	assert.Equal(t, 3, b.Len())
}

func Test_BlockListInvalid(t *testing.T) {
	b := New()
	for _, name := range []string{"", ".", "a..b", "*.ads.com", `a\.b`, strings.Repeat("x", 64) + ".com"} {
		assert.ErrorIs(t, b.Insert(name), ErrInvalidDomain, name)
	}
	assert.Zero(t, b.Len())
}

func Test_BlockListLoad(t *testing.T) {
	list := `# ad servers
ads.example.com

   tracker.test   
0.0.0.0 doubleclick.net
127.0.0.1	metrics.example.org # inline
bad..entry
*.wild.test
# trailing comment
`
	b := New()
	require.NoError(t, b.Load(strings.NewReader(list)))

	assert.Equal(t, 4, b.Len())
	assert.True(t, b.MatchName("ads.example.com"))
	assert.True(t, b.MatchName("tracker.test"))
	assert.True(t, b.MatchName("ad.doubleclick.net"))
	assert.True(t, b.MatchName("metrics.example.org"))
	assert.False(t, b.MatchName("0.0.0.0"))
	assert.False(t, b.MatchName("wild.test"))
}

func Test_BlockListLoadLongLine(t *testing.T) {
	list := "ads.example.com\n" + strings.Repeat("a", 70000) + "\ntracker.test\n" +
		strings.Repeat("b", maxLine*2)

	b := New()
	require.NoError(t, b.Load(strings.NewReader(list)))

	assert.Equal(t, 2, b.Len())
	assert.True(t, b.MatchName("ads.example.com"))
	assert.True(t, b.MatchName("tracker.test"))
}

func Test_BlockListLoadFields(t *testing.T) {
	list := `ads.example.com extra
0.0.0.0 one.test two.test
::1 six.test
0.0.0.0
`
	b := New()
	require.NoError(t, b.Load(strings.NewReader(list)))

	assert.Equal(t, 4, b.Len())
	assert.True(t, b.MatchName("ads.example.com"))
	assert.False(t, b.MatchName("extra"))
	assert.True(t, b.MatchName("one.test"))
	assert.True(t, b.MatchName("two.test"))
	assert.True(t, b.MatchName("six.test"))
}

func Test_BlockListLoadReadError(t *testing.T) {
	errRead := errors.New("disk gone")

	b := New()
	err := b.Load(iotest.ErrReader(errRead))
	assert.ErrorIs(t, err, errRead)
}

func Test_BlockListBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blist")
	require.NoError(t, os.WriteFile(path, []byte("blocked.test\nads.example.com\n"), 0o600))

	b, err := Build(path)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())
	assert.True(t, b.MatchName("blocked.test"))

	_, err = Build(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func Test_BlockListDestroy(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("ads.example.com"))
	require.NoError(t, b.Insert("doubleclick.net"))

	b.Destroy()
	assert.False(t, b.MatchName("ads.example.com"))
	assert.Zero(t, b.Len())

	// destroyed lists can be refilled, and destroying twice is fine
	require.NoError(t, b.Insert("blocked.test"))
	assert.True(t, b.MatchName("blocked.test"))
	b.Destroy()
	b.Destroy()

	var nilList *Blocklist
	nilList.Destroy()
}

func Test_BlockListDeep(t *testing.T) {
	name := strings.TrimSuffix(strings.Repeat("a.", 100), ".")

	b := New()
	require.NoError(t, b.Insert(name))
	assert.True(t, b.MatchName(name))
	assert.True(t, b.MatchName("x."+name))
	assert.False(t, b.MatchName(name[2:]))

	b.Destroy()
	assert.Nil(t, b.nodes)
}
