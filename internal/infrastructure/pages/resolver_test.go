package pages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver("")
	require.NoError(t, err)
	return r
}

func TestResolveAlias(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "alphaverify.html", r.Resolve("alpha", "verify"))
	assert.Equal(t, "betaloading.html", r.Resolve("beta", "loading"))
}

func TestResolveNormalizesInput(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "alphaconfirm.html", r.Resolve("alpha", "/Confirm.html"))
	assert.Equal(t, "alphadone.html", r.Resolve("alpha", "  done "))
}

func TestResolveStripsCategoryPrefix(t *testing.T) {
	r := newTestResolver(t)
	// "alphaverify" is not in the alias table directly but resolves once the
	// category prefix is stripped.
	assert.Equal(t, "alphaverify.html", r.Resolve("alpha", "alphaverify"))
}

func TestResolvePassthroughForUnknownNames(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "custom.html", r.Resolve("alpha", "custom"))
	assert.Equal(t, "custom.html", r.Resolve("alpha", "custom.html"))
}

func TestResolveUnknownCategory(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "verify.html", r.Resolve("gamma", "verify"))
}

func TestIsKnownCaseInsensitive(t *testing.T) {
	r := newTestResolver(t)
	assert.True(t, r.IsKnown("alphaverify.html"))
	assert.True(t, r.IsKnown("AlphaVerify.HTML"))
	assert.False(t, r.IsKnown("nosuchpage.html"))
}

func TestCategoryPages(t *testing.T) {
	r := newTestResolver(t)
	assert.True(t, r.HasCategory("alpha"))
	assert.True(t, r.HasCategory("ALPHA"))
	assert.False(t, r.HasCategory("gamma"))
	assert.Equal(t, "betaverify.html", r.EntryPage("beta"))
	assert.Equal(t, "betaloading.html", r.LoadingPage("beta"))
}

func TestConfigFileReplacesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"gamma": {
			"entryPage": "gammastart.html",
			"loadingPage": "gammawait.html",
			"aliases": {"start": "gammastart.html"}
		}
	}`), 0644))

	r, err := NewResolver(path)
	require.NoError(t, err)
	assert.True(t, r.HasCategory("gamma"))
	assert.False(t, r.HasCategory("alpha"))
	assert.Equal(t, "gammastart.html", r.Resolve("gamma", "start"))
}

func TestMalformedConfigIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewResolver(path)
	assert.Error(t, err)
}
