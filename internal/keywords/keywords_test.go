package keywords

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultTableTiers(t *testing.T) {
	t.Parallel()

	table := Default()
	require.Equal(t, 4, table.NumTiers())

	cases := []struct {
		keyword string
		tier    int
	}{
		{"about-us", 1},
		{"Über uns", 1},
		{"/unternehmen", 2},
		{"unternehmen", 3},
		{"profil", 3},
		{"about", 4},
		{"sortiment", 4},
	}
	for _, tc := range cases {
		tier, ok := table.Lookup(tc.keyword)
		require.True(t, ok, tc.keyword)
		require.Equal(t, tc.tier, tier, tc.keyword)
	}

	_, ok := table.Lookup("contact")
	require.False(t, ok)
}

func TestNewCollapsesDuplicatesWithinTier(t *testing.T) {
	t.Parallel()

	table, err := New([][]string{{"a", "b", "a"}, {"c"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, table.Keywords(1))
	require.Len(t, table.Entries(), 3)
}

func TestNewRejectsKeywordInTwoTiers(t *testing.T) {
	t.Parallel()

	_, err := New([][]string{{"about"}, {"about"}})
	require.Error(t, err)
}

func TestKeywordsReturnsCopy(t *testing.T) {
	t.Parallel()

	table := Default()
	words := table.Keywords(2)
	words[0] = "mutated"
	require.Equal(t, "/unternehmen", table.Keywords(2)[0])
	require.Nil(t, table.Keywords(0))
	require.Nil(t, table.Keywords(9))
}

func TestPriority(t *testing.T) {
	t.Parallel()

	table, err := New([][]string{{"about-us"}, {"company"}, {"story"}, {"about"}})
	require.NoError(t, err)
	require.Equal(t, 1+4, table.Priority("https://x.com/about-us"))
	require.Equal(t, 2+3, table.Priority("https://x.com/company/story"))
	require.Equal(t, 0, table.Priority("https://x.com/contact"))
}

func TestSiteName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://www.acme.com/":         "acme",
		"http://shop.example.co.uk/a/b": "example",
		"https://bosch.de":              "bosch",
	}
	for in, want := range cases {
		got, err := SiteName(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := SiteName("not a url")
	require.Error(t, err)
}

func TestWithSiteNameAddsTierThree(t *testing.T) {
	t.Parallel()

	base := Default()
	extended, err := base.WithSiteName("https://www.acme.com")
	require.NoError(t, err)

	tier, ok := extended.Lookup("acme")
	require.True(t, ok)
	require.Equal(t, 3, tier)

	_, ok = base.Lookup("acme")
	require.False(t, ok, "base table must not change")
}
