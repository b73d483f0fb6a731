package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dev-tams/newsdrop/internal/errutil"
	"github.com/dev-tams/newsdrop/internal/httputil"
	"github.com/dev-tams/newsdrop/internal/pdfdoc"
)

const NYTPrefix = "New York Times"

// maxNYTAttempts is the primary URL plus three alternates.
const maxNYTAttempts = 4

var (
	DefaultNYTHosts        = []string{"https://www.nytimes.com", "https://static01.nyt.com"}
	DefaultNYTNames        = []string{"scan.pdf", "scannat.pdf"}
	DefaultNYTPathTemplate = "/images/{yyyy}/{mm}/{dd}/nytfrontpage/{name}"
)

// NYTOptions describes the mirror grid. Attempts walk every name on the
// first host, then every name on the next host.
type NYTOptions struct {
	Hosts        []string
	Names        []string
	PathTemplate string
}

// nyt publishes the front page as a single PDF mirrored on several hosts.
type nyt struct {
	client  *httputil.Client
	scratch string
	opts    NYTOptions
}

func newNYT(opts Options) *nyt {
	o := opts.NYT
	if len(o.Hosts) == 0 {
		o.Hosts = DefaultNYTHosts
	}
	if len(o.Names) == 0 {
		o.Names = DefaultNYTNames
	}
	if o.PathTemplate == "" {
		o.PathTemplate = DefaultNYTPathTemplate
	}
	return &nyt{client: opts.Client, scratch: opts.ScratchDir, opts: o}
}

func (s *nyt) Kind() Kind     { return KindNYT }
func (s *nyt) Prefix() string { return NYTPrefix }

// URLs returns the attempts for date in fallback order.
func (s *nyt) URLs(date string) []string {
	path := strings.NewReplacer("{yyyy}", date[:4], "{mm}", date[4:6], "{dd}", date[6:8])
	var out []string
	for _, host := range s.opts.Hosts {
		for _, name := range s.opts.Names {
			if len(out) == maxNYTAttempts {
				return out
			}
			p := strings.ReplaceAll(path.Replace(s.opts.PathTemplate), "{name}", name)
			out = append(out, strings.TrimRight(host, "/")+p)
		}
	}
	return out
}

// Fetch ignores OnlyFront: the source only carries the front page.
func (s *nyt) Fetch(ctx context.Context, req Request) (Edition, error) {
	if err := ValidateDate(req.Date); err != nil {
		return Edition{}, err
	}

	asm, err := pdfdoc.NewAssembly(s.scratch)
	if err != nil {
		return Edition{}, err
	}
	defer errutil.Close(asm, "Failed to remove scratch directory", "source", KindNYT)

	var lastErr error
	var tried []string
	for _, url := range s.URLs(req.Date) {
		tried = append(tried, url)
		slog.Info("fetching", "source", KindNYT, "url", url)

		body, err := s.client.Get(ctx, url)
		if err == nil {
			err = asm.Append(body)
		}
		if err != nil {
			errutil.LogMsg(err, "Attempt failed", "source", KindNYT, "url", url)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		break
	}

	if asm.Documents() == 0 {
		return Edition{}, fmt.Errorf("%w: %s %s after %d attempt(s) [%s]: %w",
			ErrAllMirrorsExhausted, NYTPrefix, req.Date, len(tried), strings.Join(tried, ", "), lastErr)
	}

	out := outputPath(req, NYTPrefix)
	if err := asm.Finalize(out); err != nil {
		return Edition{}, err
	}
	return Edition{Prefix: NYTPrefix, Date: req.Date, Path: out, Pages: asm.Pages()}, nil
}
