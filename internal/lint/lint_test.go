package lint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Canonical", "canonical"},
		{"test prefix", "testAmpStoryV1Metadata", "ampstoryv1metadata"},
		{"upper prefix", "TestCorsCache", "corscache"},
		{"short", "Img", "img"},
		{"prefix only", "test", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Identifier(tt.in))
		})
	}
}

func TestNonPassNeverNil(t *testing.T) {
	t.Parallel()

	got := NonPass([]Verdict{Pass(), Pass()})
	require.NotNil(t, got)
	require.Empty(t, got)

	got = NonPass([]Verdict{Pass(), Warn("w"), Fail("f")})
	require.Equal(t, []Verdict{Warn("w"), Fail("f")}, got)
}

func TestVerdictJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Pass())
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"PASS"}`, string(data))

	data, err = json.Marshal(Fail("broken"))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"FAIL","message":"broken"}`, string(data))

	data, err = json.Marshal(FailDiff("https://a/", "https://b/"))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"FAIL","message":{"actual":"https://a/","expected":"https://b/"}}`, string(data))

	var decoded Verdict
	require.NoError(t, json.Unmarshal(data, &decoded))
	diff, ok := decoded.Message.Diff()
	require.True(t, ok)
	require.Equal(t, "https://a/", diff.Actual)
}

func TestSingleConvertsErrorsAndPanics(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, "<html><body></body></html>")

	failing := Single("Broken", func(context.Context, *Document) (Verdict, error) {
		return Verdict{}, fmt.Errorf("fetch: %w", ErrNetwork)
	})
	out := failing.Run(context.Background(), doc)
	require.False(t, out.IsList())
	require.Equal(t, StatusFail, out.Verdict().Status)
	require.Contains(t, out.Verdict().Message.String(), "network error")

	panicking := Single("Panics", func(context.Context, *Document) (Verdict, error) {
		panic("boom")
	})
	out = panicking.Run(context.Background(), doc)
	require.Equal(t, StatusFail, out.Verdict().Status)
	require.Contains(t, out.Verdict().Message.String(), "boom")
}

func TestMultiFiltersPasses(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, "<html></html>")
	check := Multi("Images", func(context.Context, *Document) ([]Verdict, error) {
		return []Verdict{Pass(), Warn("too big"), Pass()}, nil
	})
	out := check.Run(context.Background(), doc)
	require.True(t, out.IsList())
	require.Equal(t, []Verdict{Warn("too big")}, out.Verdicts())
	require.False(t, out.Passed())

	allPass := Multi("Clean", func(context.Context, *Document) ([]Verdict, error) {
		return []Verdict{Pass()}, nil
	})
	out = allPass.Run(context.Background(), doc)
	require.True(t, out.Passed())
	data, err := json.Marshal(out)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))

	erroring := Multi("Erroring", func(context.Context, *Document) ([]Verdict, error) {
		return nil, errors.New("probe failed")
	})
	out = erroring.Run(context.Background(), doc)
	require.Len(t, out.Verdicts(), 1)
	require.Equal(t, StatusFail, out.Verdicts()[0].Status)
}

func TestReportSummaryAndJSON(t *testing.T) {
	t.Parallel()

	report := NewReport(map[string]Outcome{
		"canonical":  One(Pass()),
		"ampimg":     Many([]Verdict{Warn("w")}),
		"corscache":  Many(nil),
		"validity":   One(Fail("invalid")),
		"mostlytext": One(Info("note")),
	})
	require.Equal(t, 5, report.Len())
	require.Equal(t, "ampimg,mostlytext,validity", report.Summary())
	require.Equal(t, StatusFail, report.Worst())

	first, err := json.Marshal(report)
	require.NoError(t, err)
	second, err := json.Marshal(report)
	require.NoError(t, err)
	require.Equal(t, first, second)

	var decoded Report
	require.NoError(t, json.Unmarshal(first, &decoded))
	require.Equal(t, report.IDs(), decoded.IDs())
	out, ok := decoded.Get("corscache")
	require.True(t, ok)
	require.True(t, out.IsList())
	require.True(t, out.Passed())
}

func TestDocumentResolveAndHeaders(t *testing.T) {
	t.Parallel()

	headers := http.Header{"X-Test": {"a"}}
	doc, err := NewDocument("https://example.com/story/", `<link rel="canonical" href="../a.html">`, headers)
	require.NoError(t, err)

	href, ok := doc.Attr(`link[rel="canonical"]`, "href")
	require.True(t, ok)
	require.Equal(t, "https://example.com/a.html", doc.Resolve(href))
	require.Empty(t, doc.Resolve("  "))

	got := doc.Headers()
	got.Set("X-Test", "mutated")
	headers.Set("X-Test", "mutated")
	require.Equal(t, "a", doc.Headers().Get("X-Test"))
}

func TestStatusErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch: %w", &StatusError{Code: 404})
	require.ErrorIs(t, err, ErrHTTPStatus)
	require.Contains(t, err.Error(), "actual [404]")
}

func mustDocument(t *testing.T, html string) *Document {
	t.Helper()
	doc, err := NewDocument("https://example.com/", html, nil)
	require.NoError(t, err)
	return doc
}

func TestFanOutKeepsIndexOrderAndRecovers(t *testing.T) {
	t.Parallel()

	got := FanOut(context.Background(), 3, func(_ context.Context, i int) Verdict {
		switch i {
		case 1:
			panic("probe exploded")
		case 2:
			return Warnf("entry %d", i)
		default:
			return Pass()
		}
	})
	require.Len(t, got, 3)
	require.True(t, got[0].IsPass())
	require.Equal(t, Fail("check aborted: probe exploded"), got[1])
	require.Equal(t, Warn("entry 2"), got[2])
}
