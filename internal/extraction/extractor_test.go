package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-archiver/internal/browser"
	"github.com/jonathan/article-archiver/internal/browser/browsertest"
	"github.com/jonathan/article-archiver/internal/site"
	"github.com/jonathan/article-archiver/internal/types"
)

const articleURL = "https://tvpworld.com/89000001/chopin-competition-opens"

func testProfile() site.Profile {
	p := site.TVPWorld()
	p.Pauses = site.Pauses{}
	return p
}

func stub() types.CandidateStub {
	return types.CandidateStub{
		Date:  time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC),
		Title: "Chopin Competition opens",
		Link:  articleURL,
	}
}

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestFirstOf(t *testing.T) {
	strategies := SelectorStrategies([]string{"span.article__paragraph-text", "p.article__lead"})

	tests := []struct {
		name string
		html string
		want *string
	}{
		{
			name: "primary wins",
			html: `<p class="article__lead">Lead</p><span class="article__paragraph-text">Body  text</span>`,
			want: ptr("Body text"),
		},
		{
			name: "falls back to lead",
			html: `<p class="article__lead">
				Lead paragraph
			</p>`,
			want: ptr("Lead paragraph"),
		},
		{
			name: "empty primary counts as no match",
			html: `<span class="article__paragraph-text">   </span><p class="article__lead">Lead</p>`,
			want: ptr("Lead"),
		},
		{
			name: "first element only",
			html: `<span class="article__paragraph-text">One</span><span class="article__paragraph-text">Two</span>`,
			want: ptr("One"),
		},
		{
			name: "nothing matches",
			html: `<div>Unrelated</div>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstOf(doc(t, tt.html), strategies...))
		})
	}
}

func TestCleanWhitespace(t *testing.T) {
	in := "  First   line \n\n\t second\tline  \n   "
	assert.Equal(t, "First line\nsecond line", cleanWhitespace(in))
}

func TestExtract_ContentAndSnapshot(t *testing.T) {
	s := browsertest.New(map[string]string{
		articleURL: `<html><body><span class="article__paragraph-text">text</span></body></html>`,
	})

	e := New(testProfile(), Options{})
	got, err := e.Extract(context.Background(), s, stub())
	require.NoError(t, err)

	require.NotNil(t, got.Content)
	assert.Equal(t, "text", *got.Content)
	assert.Equal(t, s.PDF, got.Snapshot)
	assert.NoError(t, got.SnapshotErr)
	require.Len(t, s.PDFOptions, 1)
	assert.Equal(t, browser.A4(), s.PDFOptions[0])
}

func TestExtract_SnapshotFailureIsNotAnError(t *testing.T) {
	s := browsertest.New(map[string]string{
		articleURL: `<html><body><p class="article__lead">Lead only</p></body></html>`,
	})
	s.PDFErr = errors.New("Printing is not available")

	got, err := New(testProfile(), Options{}).Extract(context.Background(), s, stub())
	require.NoError(t, err)

	require.NotNil(t, got.Content)
	assert.Equal(t, "Lead only", *got.Content)
	assert.Nil(t, got.Snapshot)
	assert.Error(t, got.SnapshotErr)
}

func TestExtract_EmptyParagraphFallsBackToLead(t *testing.T) {
	s := browsertest.New(map[string]string{
		articleURL: `<html><body><span class="article__paragraph-text"></span><p class="article__lead">Lead only</p></body></html>`,
	})

	got, err := New(testProfile(), Options{}).Extract(context.Background(), s, stub())
	require.NoError(t, err)
	require.NotNil(t, got.Content)
	assert.Equal(t, "Lead only", *got.Content)
}

func TestExtract_NoContent(t *testing.T) {
	s := browsertest.New(map[string]string{
		articleURL: `<html><body><div class="video-player"></div></body></html>`,
	})

	got, err := New(testProfile(), Options{}).Extract(context.Background(), s, stub())
	require.NoError(t, err)
	assert.Nil(t, got.Content)
	assert.NotEmpty(t, got.Snapshot)
}

func TestExtract_NavigationFailure(t *testing.T) {
	s := browsertest.New(map[string]string{})
	s.NavigateErr[articleURL] = errors.New("net::ERR_CONNECTION_RESET")

	_, err := New(testProfile(), Options{}).Extract(context.Background(), s, stub())
	require.Error(t, err)

	var se *browser.SessionError
	assert.ErrorAs(t, err, &se)
	assert.Empty(t, s.PDFOptions)
}

func TestExtract_CustomStrategies(t *testing.T) {
	s := browsertest.New(map[string]string{
		articleURL: `<html><body><article><p>Custom</p></article></body></html>`,
	})

	e := New(testProfile(), Options{Strategies: []Strategy{SelectorText("article p")}})
	got, err := e.Extract(context.Background(), s, stub())
	require.NoError(t, err)
	require.NotNil(t, got.Content)
	assert.Equal(t, "Custom", *got.Content)
}

func ptr(s string) *string { return &s }
