package converter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
)

func TestFormatConverter_CanConvert(t *testing.T) {
	c := newFormatConverter()
	cases := map[string]bool{
		"a.html": true, "a.HTM": true, "a.csv": true, "a.Json": true, "a.xml": true,
		"a.txt": true, "a.md": true, "a.DOCX": true, "a.xlsx": true, "a.pptx": true, "a.pdf": true,
		"a.doc": false, "a.xls": false, "a.ppt": false, "a.mp3": false, "a.png": false,
		"a.zip": false, "README": false, "": false,
	}
	for name, want := range cases {
		if got := c.CanConvert(name); got != want {
			t.Errorf("CanConvert(%q) = %v, want %v", name, got, want)
		}
	}
	got := c.SupportedFormats()
	sort.Strings(got)
	want := []string{"csv", "docx", "htm", "html", "json", "md", "pdf", "pptx", "txt", "xlsx", "xml"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("SupportedFormats() = %v", got)
	}
}

func TestFormatConverter_TextFormats(t *testing.T) {
	cases := []struct {
		file, content string
		want          []string
		exact         bool
	}{
		{file: "data.csv", content: "Name,Age\nAlice,30\nBob\n",
			want: []string{"| Name  | Age |\n", "| ----- | --- |\n", "| Bob   |     |\n"}},
		{file: "pipes.csv", content: "Formula,Value\na|b,1\n", want: []string{`a\|b`}},
		{file: "quoted.csv", content: "note\n\"two\nlines\"\n", want: []string{"two<br>lines"}},
		{file: "empty.csv", content: "", want: []string{""}, exact: true},
		{file: "obj.json", content: `{"b":1,"a":[true]}`, want: []string{"```json\n{\n  \"b\": 1,\n  \"a\": [\n    true\n  ]\n}\n```"}, exact: true},
		{file: "bad.json", content: `{not json}`, want: []string{"```json\n{not json}\n```"}, exact: true},
		{file: "feed.xml", content: "<root><item>hi</item></root>\n", want: []string{"```xml\n<root><item>hi</item></root>\n```"}, exact: true},
		{file: "note.txt", content: "Hello!\nLine two.", want: []string{"Hello!\nLine two."}, exact: true},
		{file: "bom.txt", content: "\ufeffafter bom", want: []string{"after bom"}, exact: true},
		{file: "readme.md", content: "# Heading\n\nText.", want: []string{"# Heading\n\nText."}, exact: true},
		{file: "page.html", content: `<h1>Title</h1><p>Hello <del>old</del></p><script>alert(1)</script>`,
			want: []string{"# Title", "Hello ~", "old~"}},
		{file: "grid.html", content: `<table><tr><th>K</th><th>V</th></tr><tr><td>x</td><td>1</td></tr></table>`,
			want: []string{"| K ", "| x "}},
	}
	c := newFormatConverter()
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			out, err := c.ConvertFile(writeTempFile(t, tc.file, tc.content))
			assertNoErr(t, err)
			if tc.exact {
				if out != tc.want[0] {
					t.Errorf("got %q, want %q", out, tc.want[0])
				}
				return
			}
			for _, w := range tc.want {
				assertContains(t, out, w)
			}
			if strings.Contains(out, "alert") {
				t.Errorf("script content leaked: %q", out)
			}
		})
	}
}

func TestFormatConverter_NoParser(t *testing.T) {
	_, err := newFormatConverter().ConvertFile(writeTempFile(t, "old.xls", "binary workbook"))
	if !errors.Is(err, ErrNoConverterAttempted) {
		t.Errorf("expected ErrNoConverterAttempted, got %v", err)
	}
}

func TestDecodeText(t *testing.T) {
	out, err := decodeText([]byte{'c', 'a', 'f', 0xe9}, "iso-8859-1")
	assertNoErr(t, err)
	if out != "café" {
		t.Errorf("latin-1 decode = %q", out)
	}
	out, err = decodeText([]byte{0xff, 0xfe, 'h', 0, 'i', 0}, "")
	assertNoErr(t, err)
	if out != "hi" {
		t.Errorf("utf-16 bom decode = %q", out)
	}
	_, err = decodeText([]byte("x"), "no-such-charset")
	assertErr(t, err)
}

func serve(t *testing.T, contentType, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestFormatConverter_ConvertURL(t *testing.T) {
	cases := []struct {
		name, contentType, body, want string
	}{
		{"html", "text/html; charset=utf-8", `<h2>Remote</h2><p>fetched page</p>`, "## Remote"},
		{"latin1 html", "text/html; charset=ISO-8859-1", "<p>na\xefve</p>", "naïve"},
		{"json", "application/problem+json", `{"title":"x"}`, "```json"},
		{"csv", "text/csv", "a,b\n1,2\n", "| a   | b   |"},
		{"plain", "text/plain", "*as is*", "*as is*"},
	}
	c := newFormatConverter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := c.ConvertURL(context.Background(), serve(t, tc.contentType, tc.body))
			assertNoErr(t, err)
			assertContains(t, out, tc.want)
		})
	}
}

func TestFormatConverter_ConvertURL_Failures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := newFormatConverter()
	_, err := c.ConvertURL(context.Background(), srv.URL)
	assertErr(t, err)

	c.maxBytes = 16
	_, err = c.ConvertURL(context.Background(), serve(t, "text/plain", strings.Repeat("x", 64)))
	assertErr(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newFormatConverter().ConvertURL(ctx, serve(t, "", "late"))
	assertErr(t, err)
}
