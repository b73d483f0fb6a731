package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dev-tams/newsdrop/internal/errutil"
	"github.com/dev-tams/newsdrop/internal/httputil"
	"github.com/dev-tams/newsdrop/internal/pdfdoc"
)

const WaPoPrefix = "Washington Post"

const (
	DefaultWaPoBaseURL   = "https://www.washingtonpost.com/wp-stat/tablet/v1.1"
	DefaultWaPoFrontPage = "A01"
)

type WaPoOptions struct {
	BaseURL   string
	FrontPage string
}

// Page is one entry of the tablet manifest.
type Page struct {
	Date     string
	Name     string
	HiresPDF string
	Thumb    string
}

type manifest struct {
	Sections struct {
		PubDate string            `json:"pubdate"`
		Section []manifestSection `json:"section"`
	} `json:"sections"`
}

type manifestSection struct {
	Name  string `json:"name"`
	Pages struct {
		Page []struct {
			PageName string `json:"page_name"`
			HiresPDF string `json:"hires_pdf"`
			Thumb300 string `json:"thumb_300"`
		} `json:"page"`
	} `json:"pages"`
}

// ParseManifest flattens a tablet manifest into pages in section order, then
// page order within each section. With onlyFront only the page named front
// is kept.
func ParseManifest(data []byte, onlyFront bool, front string) ([]Page, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Sections.PubDate == "" && len(m.Sections.Section) == 0 {
		return nil, fmt.Errorf("manifest has no sections")
	}

	var pages []Page
	for _, sec := range m.Sections.Section {
		for _, p := range sec.Pages.Page {
			if onlyFront && p.PageName != front {
				continue
			}
			pages = append(pages, Page{
				Date:     m.Sections.PubDate,
				Name:     p.PageName,
				HiresPDF: p.HiresPDF,
				Thumb:    p.Thumb300,
			})
		}
	}
	return pages, nil
}

// wapo publishes a JSON manifest per day and one PDF per page.
type wapo struct {
	client  *httputil.Client
	scratch string
	opts    WaPoOptions
}

func newWaPo(opts Options) *wapo {
	o := opts.WaPo
	if o.BaseURL == "" {
		o.BaseURL = DefaultWaPoBaseURL
	}
	if o.FrontPage == "" {
		o.FrontPage = DefaultWaPoFrontPage
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return &wapo{client: opts.Client, scratch: opts.ScratchDir, opts: o}
}

func (s *wapo) Kind() Kind     { return KindWaPo }
func (s *wapo) Prefix() string { return WaPoPrefix }

func (s *wapo) manifestURL(date string) string {
	return fmt.Sprintf("%s/%s/tablet_%s.json", s.opts.BaseURL, date, date)
}

func (s *wapo) pageURL(p Page) string {
	return fmt.Sprintf("%s/%s/%s", s.opts.BaseURL, p.Date, p.HiresPDF)
}

func (s *wapo) Fetch(ctx context.Context, req Request) (Edition, error) {
	if err := ValidateDate(req.Date); err != nil {
		return Edition{}, err
	}

	data, err := s.client.Get(ctx, s.manifestURL(req.Date))
	if err != nil {
		return Edition{}, fmt.Errorf("%w: %s manifest: %w", ErrTransport, WaPoPrefix, err)
	}
	pages, err := ParseManifest(data, req.OnlyFront, s.opts.FrontPage)
	if err != nil {
		return Edition{}, fmt.Errorf("%w: %s manifest: %w", ErrTransport, WaPoPrefix, err)
	}
	slog.Info("got manifest", "source", KindWaPo, "date", req.Date, "pages", len(pages))

	asm, err := pdfdoc.NewAssembly(s.scratch)
	if err != nil {
		return Edition{}, err
	}
	defer errutil.Close(asm, "Failed to remove scratch directory", "source", KindWaPo)

	for _, p := range pages {
		if p.Date == "" {
			p.Date = req.Date
		}
		url := s.pageURL(p)
		slog.Info("fetching", "source", KindWaPo, "page", p.Name, "url", url)

		body, err := s.client.Get(ctx, url)
		if err == nil {
			err = asm.Append(body)
		}
		if err != nil {
			return Edition{}, fmt.Errorf("%w: %s page %s: %w", ErrPartialPage, WaPoPrefix, p.Name, err)
		}
	}

	out := outputPath(req, WaPoPrefix)
	if err := asm.Finalize(out); err != nil {
		return Edition{}, fmt.Errorf("%s %s: %w", WaPoPrefix, req.Date, err)
	}
	return Edition{Prefix: WaPoPrefix, Date: req.Date, Path: out, Pages: asm.Pages()}, nil
}
