// Package site describes the target site: its URLs, selectors, and timing.
package site

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/article-archiver/internal/schemas"
)

// Placeholders substituted into SearchURL.
const (
	QueryPlaceholder = "{query}"
	PagePlaceholder  = "{page}"
)

// Profile holds everything the crawler and extractor need to know about a site.
// Every selector is an ordered fallback list; the first one that matches wins.
type Profile struct {
	Name             string    `yaml:"name" validate:"required"`
	BaseURL          string    `yaml:"base_url" validate:"required,url"`
	SearchURL        string    `yaml:"search_url" validate:"required,url"` // Must contain {query} and {page}
	DateLayouts      []string  `yaml:"date_layouts" validate:"required,min=1,dive,required"`
	DefaultPageCount int       `yaml:"default_page_count" validate:"min=1"`
	Selectors        Selectors `yaml:"selectors"`
	Pauses           Pauses    `yaml:"pauses"`
}

// Selectors are CSS selectors grouped by the element they locate.
type Selectors struct {
	// Search flow
	Interstitial []string `yaml:"interstitial"`  // Optional overlay to dismiss
	SearchToggle []string `yaml:"search_toggle"` // Optional button revealing the search form
	SearchInput  []string `yaml:"search_input" validate:"required,min=1"`
	SearchSubmit []string `yaml:"search_submit" validate:"required,min=1"`
	LastPage     []string `yaml:"last_page"`

	// Result entries, relative to ResultEntry
	ResultEntry []string `yaml:"result_entry" validate:"required,min=1"`
	EntryDate   []string `yaml:"entry_date" validate:"required,min=1"`
	EntryTitle  []string `yaml:"entry_title" validate:"required,min=1"`
	EntryLink   []string `yaml:"entry_link" validate:"required,min=1"`

	// Article page, tried in order
	ArticleContent []string `yaml:"article_content" validate:"required,min=1"`
}

// Pauses are the fixed settle times after each browser step.
type Pauses struct {
	AfterInterstitial time.Duration `yaml:"after_interstitial"`
	AfterSearchToggle time.Duration `yaml:"after_search_toggle"`
	AfterSubmit       time.Duration `yaml:"after_submit"`
	AfterPage         time.Duration `yaml:"after_page"`    // Result pages 2..N
	AfterArticle      time.Duration `yaml:"after_article"` // Article navigation
}

// TVPWorld returns the built-in profile for tvpworld.com.
func TVPWorld() Profile {
	return Profile{
		Name:             "tvpworld",
		BaseURL:          "https://tvpworld.com/",
		SearchURL:        "https://tvpworld.com/search?query={query}&page={page}",
		DateLayouts:      []string{"2 January 2006", "January 2, 2006"},
		DefaultPageCount: 2,
		Selectors: Selectors{
			Interstitial:   []string{"div.tvp-covl__ab"},
			SearchToggle:   []string{"button.header__search"},
			SearchInput:    []string{"input.search-form__input"},
			SearchSubmit:   []string{"button.search-form__search"},
			LastPage:       []string{"a.pagination__item.pagination__item--last"},
			ResultEntry:    []string{"div.search__content"},
			EntryDate:      []string{"div.search__info p.search__date"},
			EntryTitle:     []string{"h4.search__title"},
			EntryLink:      []string{"a.search__wrapp"},
			ArticleContent: []string{"span.article__paragraph-text", "p.article__lead"},
		},
		Pauses: Pauses{
			AfterInterstitial: time.Second,
			AfterSearchToggle: time.Second,
			AfterSubmit:       2 * time.Second,
			AfterPage:         time.Second,
			AfterArticle:      time.Second,
		},
	}
}

// LoadProfile reads a YAML profile from path and merges it over TVPWorld().
// Fields missing from the file keep their built-in values.
func LoadProfile(path string) (Profile, error) {
	p := TVPWorld()

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile YAML: %w", err)
	}
	if doc != nil {
		if err := schemas.ValidateSiteProfile(doc); err != nil {
			return Profile{}, fmt.Errorf("invalid profile %s: %w", path, err)
		}
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks required fields and the search URL placeholders.
func (p Profile) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("profile error: %w", err)
	}
	if !strings.Contains(p.SearchURL, QueryPlaceholder) || !strings.Contains(p.SearchURL, PagePlaceholder) {
		return fmt.Errorf("profile error: search_url must contain %s and %s", QueryPlaceholder, PagePlaceholder)
	}
	return nil
}

// ResultPageURL returns the URL of result page n for keyword.
func (p Profile) ResultPageURL(keyword string, n int) string {
	r := strings.NewReplacer(
		QueryPlaceholder, url.QueryEscape(keyword),
		PagePlaceholder, strconv.Itoa(n),
	)
	return r.Replace(p.SearchURL)
}

// ParseDate parses a listed result date with the profile's layouts.
func (p Profile) ParseDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range p.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// Resolve turns href into an absolute URL against base.
func Resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	if base == nil {
		if !ref.IsAbs() {
			return "", fmt.Errorf("relative link %q without a base", href)
		}
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
