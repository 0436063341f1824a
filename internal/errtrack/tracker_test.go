package errtrack

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerAddAndSummary(t *testing.T) {
	t.Parallel()

	tr := New()
	status := 404
	tr.Add(Record{Source: SourceDirect, Kind: "HTTPStatusError", URL: "https://a", StatusCode: &status})
	tr.Add(Record{Source: SourceRender, Kind: "TimeoutError", URL: "https://a"})
	tr.Add(Record{Source: SourceDirect, Kind: "HTTPStatusError", URL: "https://b"})

	records := tr.Records()
	require.Len(t, records, 3)
	require.Equal(t, SourceDirect, records[0].Source)
	require.False(t, records[0].At.IsZero())
	require.Equal(t, map[string]int{"HTTPStatusError": 2, "TimeoutError": 1}, tr.Summary())
}

func TestRecordsReturnsCopy(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Add(Record{Kind: "IOError"})
	records := tr.Records()
	records[0].Kind = "mutated"
	require.Equal(t, "IOError", tr.Records()[0].Kind)
}

func TestTrackerConcurrentAdds(t *testing.T) {
	t.Parallel()

	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Add(Record{Kind: "IOError"})
		}()
	}
	wg.Wait()
	require.Equal(t, 50, tr.Len())
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	tr := New()
	status := 503
	tr.Add(Record{Source: SourceDirect, Kind: "HTTPStatusError", URL: "https://x", Message: "boom", StatusCode: &status})
	tr.Add(Record{Source: SourceRender, Kind: "UnknownHostError", URL: "https://y", Message: "no host"})

	var b strings.Builder
	require.NoError(t, tr.WriteReport(&b))
	out := b.String()
	require.Contains(t, out, "Detailed Error Overview:")
	require.Contains(t, out, "Status Code: 503")
	require.Contains(t, out, "Source: render-fetch")
	require.Contains(t, out, "HTTPStatusError: 1\nUnknownHostError: 1\n")
}
