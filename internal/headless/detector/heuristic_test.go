package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nace-crawler/internal/document"
)

func parse(t *testing.T, markup string) *document.Document {
	t.Helper()
	doc, err := document.ParseString("https://acme.com/", markup)
	require.NoError(t, err)
	return doc
}

func TestShouldRender(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		threshold int
		markup    string
		want      bool
	}{
		{name: "next.js mount point", markup: `<div id="__next"></div>`, want: true},
		{name: "react root", markup: `<div data-reactroot=""><span>Loading</span></div>`, want: true},
		{
			name:      "script heavy shell",
			threshold: 1000,
			markup:    `<html><head><script>window.__STATE__={"a":1,"b":2,"c":3,"d":4,"e":5,"f":6,"g":7};</script></head><body><div>x</div></body></html>`,
			want:      true,
		},
		{name: "paragraph text wins", markup: `<div id="app"><p>Acme GmbH fertigt Pumpen.</p></div>`, want: false},
		{name: "plain page without script", markup: `<div><span>Impressum</span></div>`, want: false},
		{
			name:      "large script page above threshold",
			threshold: 64,
			markup:    `<html><body><script>` + strings.Repeat("var a=1;", 20) + `</script></body></html>`,
			want:      false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := NewHeuristic(tc.threshold)
			require.Equal(t, tc.want, h.ShouldRender(parse(t, tc.markup)))
		})
	}
}

func TestShouldRenderNilDocument(t *testing.T) {
	t.Parallel()

	require.False(t, NewHeuristic(0).ShouldRender(nil))
}

func TestNewHeuristicDefaultThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultThreshold, NewHeuristic(0).BodyLengthThreshold)
	require.Equal(t, 10, NewHeuristic(10).BodyLengthThreshold)
}

func TestScriptDensityHigh(t *testing.T) {
	t.Parallel()

	require.True(t, scriptDensityHigh(`<script>var a=1;</script><p>t</p>`))
	require.True(t, scriptDensityHigh(`<p>t</p><script src="x.js"`))
	require.False(t, scriptDensityHigh(`<p>`+strings.Repeat("text ", 40)+`</p><script></script>`))
	require.False(t, scriptDensityHigh(""))
}
