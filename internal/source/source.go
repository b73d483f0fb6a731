// Package source fetches newspaper editions and assembles them into one PDF
// per source and date.
//
// The set of sources is closed: every Kind has exactly one implementation and
// New switches over all of them.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dev-tams/newsdrop/internal/httputil"
)

// DateLayout is the YYYYMMDD form used in edition names.
const DateLayout = "20060102"

var (
	// ErrTransport covers non-2xx responses and unusable manifests.
	ErrTransport = errors.New("transport failure")

	// ErrAllMirrorsExhausted is returned when every mirror of a single-file
	// source failed.
	ErrAllMirrorsExhausted = errors.New("all mirrors exhausted")

	// ErrPartialPage is returned when one page of a multi-page edition could
	// not be fetched. No partial document is produced.
	ErrPartialPage = errors.New("page fetch failed")

	ErrUnknownSource = errors.New("unknown source")
)

type Kind int

const (
	KindNYT Kind = iota + 1
	KindWaPo
)

var kindKeys = map[Kind]string{
	KindNYT:  "nyt",
	KindWaPo: "wapo",
}

// Kinds returns every known source kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindKeys))
	for k := range kindKeys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Prefixes returns the file name prefix of every known source.
func Prefixes() []string {
	kinds := Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.Prefix()
	}
	return out
}

// Keys returns the CLI keys of every known source.
func Keys() []string {
	kinds := Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}

func (k Kind) String() string {
	if s, ok := kindKeys[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Prefix is the human-readable name used for local and remote file names.
func (k Kind) Prefix() string {
	switch k {
	case KindNYT:
		return NYTPrefix
	case KindWaPo:
		return WaPoPrefix
	default:
		return ""
	}
}

// ParseKind maps a CLI key such as "nyt" to its Kind.
func ParseKind(s string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindKeys {
		if name == key {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (known: %s)", ErrUnknownSource, s, strings.Join(Keys(), ", "))
}

// Edition is one assembled PDF for a source on a date.
type Edition struct {
	Prefix string
	Date   string
	Path   string
	Pages  int
}

// Name is the remote document name of the edition.
func (e Edition) Name() string {
	return EditionName(e.Prefix, e.Date)
}

// EditionName joins a source prefix and a date the way remote documents are named.
func EditionName(prefix, date string) string {
	return prefix + " " + date
}

type Request struct {
	Date      string
	OnlyFront bool
	// OutDir receives the finished "<prefix> <date>.pdf".
	OutDir string
}

type Source interface {
	Kind() Kind
	Prefix() string
	Fetch(ctx context.Context, req Request) (Edition, error)
}

type Options struct {
	Client *httputil.Client
	// ScratchDir is the parent for per-fetch scratch directories.
	ScratchDir string
	NYT        NYTOptions
	WaPo       WaPoOptions
}

func New(k Kind, opts Options) (Source, error) {
	if opts.Client == nil {
		opts.Client = httputil.NewClient(httputil.Options{})
	}
	switch k {
	case KindNYT:
		return newNYT(opts), nil
	case KindWaPo:
		return newWaPo(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, k)
	}
}

// ValidateDate checks that date is a real calendar day in YYYYMMDD form.
func ValidateDate(date string) error {
	t, err := time.Parse(DateLayout, date)
	if err != nil || t.Format(DateLayout) != date {
		return fmt.Errorf("invalid date %q: want YYYYMMDD", date)
	}
	return nil
}

func outputPath(req Request, prefix string) string {
	return filepath.Join(req.OutDir, EditionName(prefix, req.Date)+".pdf")
}

// CheckPrefixes rejects prefix sets where one remote name could match two
// prefixes, e.g. "Post" and "Post Weekend".
func CheckPrefixes(prefixes []string) error {
	for i, a := range prefixes {
		for j, b := range prefixes {
			if i == j {
				continue
			}
			if a == b || strings.HasPrefix(b+" ", a+" ") {
				return fmt.Errorf("source prefixes %q and %q overlap", a, b)
			}
		}
	}
	return nil
}
