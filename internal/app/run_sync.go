package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dev-tams/newsdrop/internal/config"
	"github.com/dev-tams/newsdrop/internal/errutil"
	"github.com/dev-tams/newsdrop/internal/httputil"
	"github.com/dev-tams/newsdrop/internal/notify"
	"github.com/dev-tams/newsdrop/internal/source"
	"github.com/dev-tams/newsdrop/internal/storage"
)

const notificationTimeout = 5 * time.Second

var newStore = storage.FromConfig

type SyncOptions struct {
	// Date overrides today's date (YYYYMMDD).
	Date      string
	DryRun    bool
	SkipFetch bool
	Progress  bool
	Out       io.Writer
}

type SyncResult struct {
	Date   string
	Folder string
	Store  string
	DryRun bool
	Plan   RunPlan
	// Skipped lists sources not fetched because their date was already stored.
	Skipped       []Item
	FailedSources []string
	Uploaded      []string
	Deleted       []string
	Duration      time.Duration
	Err           error
}

func RunSync(ctx context.Context, cfg *config.Config, opts SyncOptions) error {
	_, err := RunSyncWithResult(ctx, cfg, opts)
	return err
}

// RunSyncWithResult fetches today's editions, reads the remote inventory,
// plans uploads and deletions and applies them. Fetch failures only drop
// that source; remote store failures abort the run.
func RunSyncWithResult(ctx context.Context, cfg *config.Config, opts SyncOptions) (SyncResult, error) {
	if err := cfg.Validate(); err != nil {
		return SyncResult{}, err
	}

	dispatcher, err := notify.NewDispatcher(cfg.Notifications)
	if err != nil {
		return SyncResult{}, err
	}

	st, err := newStore(ctx, cfg.Store)
	if err != nil {
		res := SyncResult{Folder: cfg.Folder, Date: opts.Date, DryRun: opts.DryRun, Err: err}
		notifyResult(ctx, dispatcher, res)
		return res, err
	}

	return runSync(ctx, cfg, st, dispatcher, opts)
}

func runSync(ctx context.Context, cfg *config.Config, st storage.Store, dispatcher *notify.Dispatcher, opts SyncOptions) (res SyncResult, err error) {
	started := time.Now()
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	res = SyncResult{Date: opts.Date, Folder: cfg.Folder, Store: st.Name(), DryRun: opts.DryRun}
	if res.Date == "" {
		res.Date = time.Now().Format(source.DateLayout)
	}
	defer func() {
		res.Duration = time.Since(started)
		res.Err = err
		notifyResult(ctx, dispatcher, res)
	}()

	if err = source.ValidateDate(res.Date); err != nil {
		return res, err
	}
	kinds, err := cfg.Kinds()
	if err != nil {
		return res, err
	}

	if err = EnsureAuthenticated(ctx, st, cfg.Store.Rmapi.DeviceToken, out); err != nil {
		return res, err
	}

	// Retention spans every known source, not only the selected ones.
	inv, err := ReadInventory(ctx, st, cfg.Folder, source.Prefixes(), opts.DryRun, out)
	if err != nil {
		return res, err
	}

	var candidates []source.Edition
	if opts.SkipFetch {
		fmt.Fprintf(out, "fetch: skipped sources=%d\n", len(kinds))
	} else {
		workspace, werr := os.MkdirTemp(cfg.ScratchDir, "newsdrop-run-*")
		if werr != nil {
			err = fmt.Errorf("create run workspace: %w", werr)
			return res, err
		}
		defer func() {
			errutil.LogMsg(os.RemoveAll(workspace), "Failed to remove run workspace", "dir", workspace)
		}()

		candidates, err = fetchEditions(ctx, cfg, kinds, inv, workspace, &res, opts, out)
		if err != nil {
			return res, err
		}
	}

	res.Plan = Plan(candidates, inv, cfg.MaxDays)
	for _, it := range res.Plan.Present {
		fmt.Fprintf(out, "skip: name=%q reason=present\n", it.Name())
	}
	fmt.Fprintf(out, "retention: folder=%q max_days=%d dates=%d delete=%d\n",
		cfg.Folder, cfg.MaxDays, len(res.Plan.Retention.DatesToDelete), len(res.Plan.Retention.Items))

	exec := &Executor{Store: st, Folder: cfg.Folder, DryRun: opts.DryRun, Out: out}
	applied, err := exec.Apply(ctx, res.Plan.Uploads, res.Plan.Retention.Items)
	res.Uploaded = applied.Uploaded
	res.Deleted = applied.Deleted
	return res, err
}

// fetchEditions produces one candidate per source whose date is not stored
// yet. A failing source is reported and left out; only cancellation aborts.
func fetchEditions(ctx context.Context, cfg *config.Config, kinds []source.Kind, inv Inventory, workspace string, res *SyncResult, opts SyncOptions, out io.Writer) ([]source.Edition, error) {
	sopts := sourceOptions(cfg, opts.Progress)

	var editions []source.Edition
	for _, k := range kinds {
		if inv.Has(k.Prefix(), res.Date) {
			res.Skipped = append(res.Skipped, Item{Prefix: k.Prefix(), Date: res.Date})
			fmt.Fprintf(out, "skip: source=%s name=%q reason=present\n", k, source.EditionName(k.Prefix(), res.Date))
			continue
		}

		src, err := source.New(k, sopts)
		if err != nil {
			return nil, err
		}
		ed, err := src.Fetch(ctx, source.Request{Date: res.Date, OnlyFront: cfg.OnlyFront, OutDir: workspace})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.FailedSources = append(res.FailedSources, k.String())
			errutil.LogMsg(err, "Fetch failed", "source", k, "date", res.Date)
			fmt.Fprintf(out, "fetch failed: source=%s date=%s err=%v\n", k, res.Date, err)
			continue
		}

		fmt.Fprintf(out, "fetched: source=%s name=%q pages=%d\n", k, ed.Name(), ed.Pages)
		editions = append(editions, ed)
	}
	return editions, nil
}

func sourceOptions(cfg *config.Config, progress bool) source.Options {
	return source.Options{
		Client: httputil.NewClient(httputil.Options{
			Timeout:    cfg.HTTP.Timeout,
			UserAgent:  cfg.HTTP.UserAgent,
			MaxRetries: cfg.HTTP.MaxRetries,
			Progress:   progress,
		}),
		ScratchDir: cfg.ScratchDir,
		NYT: source.NYTOptions{
			Hosts:        cfg.NYT.Hosts,
			Names:        cfg.NYT.Names,
			PathTemplate: cfg.NYT.PathTemplate,
		},
		WaPo: source.WaPoOptions{
			BaseURL:   cfg.WaPo.BaseURL,
			FrontPage: cfg.WaPo.FrontPage,
		},
	}
}

func notifyResult(ctx context.Context, dispatcher *notify.Dispatcher, res SyncResult) {
	status := notify.StatusSuccess
	errMsg := ""
	switch {
	case res.Err != nil:
		status = notify.StatusFailure
		errMsg = res.Err.Error()
	case len(res.FailedSources) > 0:
		status = notify.StatusPartial
	}

	skipped := make([]string, len(res.Skipped))
	for i, it := range res.Skipped {
		skipped[i] = it.Name()
	}

	event := notify.Event{
		Status:        status,
		Store:         res.Store,
		Folder:        res.Folder,
		Date:          res.Date,
		DryRun:        res.DryRun,
		Uploaded:      res.Uploaded,
		Deleted:       res.Deleted,
		Skipped:       skipped,
		FailedSources: res.FailedSources,
		Duration:      res.Duration.Round(time.Millisecond).String(),
		Error:         errMsg,
	}

	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	errutil.LogMsg(dispatcher.Notify(notifyCtx, event), "Notification failed", "status", status, "folder", res.Folder)
}

func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}
