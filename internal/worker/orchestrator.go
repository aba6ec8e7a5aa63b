package worker

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jalalmostafa/timeds/internal/config"
	"github.com/jalalmostafa/timeds/internal/dbgateway"
	"github.com/jalalmostafa/timeds/internal/materializer"
	"github.com/jalalmostafa/timeds/internal/rlog"
)

// RunScheme runs one named scheme to completion: opens an
// administrative connection to the source, runs its optional
// bootstrap statement, resolves every DatabaseRule against the
// source's live schema list, and fans out one goroutine per resolved
// (source_db, target_db) pair. It returns every per-pair error, and
// only after every pair has finished — a single bad pair never
// prevents the others from running (spec.md §7).
func RunScheme(ctx context.Context, name string, scheme *config.SchemeConfig, onlyDynamicAndViews bool, log *rlog.Logger) []error {
	schemeLog := log.With(name, "")

	srcGw, err := dbgateway.New(scheme.Source)
	if err != nil {
		return []error{fmt.Errorf("scheme %s: source gateway: %w", name, err)}
	}
	tgtGw, err := dbgateway.New(scheme.Target)
	if err != nil {
		return []error{fmt.Errorf("scheme %s: target gateway: %w", name, err)}
	}

	srcAdmin, err := srcGw.OpenAdmin(ctx)
	if err != nil {
		return []error{fmt.Errorf("scheme %s: open source admin: %w", name, err)}
	}
	defer srcAdmin.Close()

	tgtAdmin, err := tgtGw.OpenAdmin(ctx)
	if err != nil {
		return []error{fmt.Errorf("scheme %s: open target admin: %w", name, err)}
	}
	defer tgtAdmin.Close()

	if scheme.Target.ExecuteFirst != "" {
		if _, err := tgtAdmin.ExecContext(ctx, scheme.Target.ExecuteFirst); err != nil {
			schemeLog.Error("bootstrap statement failed, continuing anyway", err)
		} else {
			schemeLog.BootstrappedWith(scheme.Target.ExecuteFirst)
		}
	}

	pairs, err := resolvePairs(ctx, srcGw, srcAdmin, scheme)
	if err != nil {
		return []error{fmt.Errorf("scheme %s: resolve databases: %w", name, err)}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(pairs))

	for _, p := range pairs {
		wg.Add(1)
		go func(p pair) {
			defer wg.Done()
			if err := runPair(ctx, name, scheme, srcGw, tgtGw, tgtAdmin, p, onlyDynamicAndViews, log); err != nil {
				errCh <- err
			}
		}(p)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errs
}

type pair struct {
	sourceDB, targetDB string
	rule               *config.DatabaseRule
}

// resolvePairs expands every DatabaseRule into the concrete source
// schemas it matches on the live source, deriving each one's target
// name. The "exact" naming strategy must match exactly one source
// schema — checked here, against live data, per spec.md §9.
func resolvePairs(ctx context.Context, srcGw *dbgateway.Gateway, srcAdmin *sql.DB, scheme *config.SchemeConfig) ([]pair, error) {
	var out []pair
	for i := range scheme.Databases {
		rule := &scheme.Databases[i]
		matches, err := srcGw.ListSchemas(ctx, srcAdmin, rule.SourcePattern)
		if err != nil {
			return nil, err
		}
		if rule.NamingStrategy == config.NamingExact && len(matches) != 1 {
			return nil, fmt.Errorf("naming_strategy=exact requires exactly one matching source schema, found %d", len(matches))
		}
		for _, src := range matches {
			out = append(out, pair{
				sourceDB: src,
				targetDB: config.DeriveTargetName(rule, src),
				rule:     rule,
			})
		}
	}
	return out, nil
}

func runPair(ctx context.Context, scheme string, sc *config.SchemeConfig, srcGw, tgtGw *dbgateway.Gateway, tgtAdmin *sql.DB, p pair, onlyDynamicAndViews bool, log *rlog.Logger) error {
	pairLog := log.With(scheme, p.sourceDB)

	if err := materializer.EnsureDatabase(ctx, tgtGw, tgtAdmin, p.targetDB, pairLog); err != nil {
		return fmt.Errorf("ensure target database %s: %w", p.targetDB, err)
	}

	srcConn, err := srcGw.Open(ctx, p.sourceDB)
	if err != nil {
		return fmt.Errorf("open source %s: %w", p.sourceDB, err)
	}
	defer srcConn.Close()

	tgtConn, err := tgtGw.Open(ctx, p.targetDB)
	if err != nil {
		return fmt.Errorf("open target %s: %w", p.targetDB, err)
	}
	defer tgtConn.Close()

	wc := &Context{
		Scheme:              scheme,
		SourceDB:            p.sourceDB,
		TargetDB:            p.targetDB,
		SrcConn:             srcConn,
		TgtConn:             tgtConn,
		SrcGw:               srcGw,
		TgtGw:               tgtGw,
		Rule:                p.rule,
		BatchSize:           sc.BatchSize,
		Log:                 pairLog,
		OnlyDynamicAndViews: onlyDynamicAndViews,
	}
	return wc.Run(ctx)
}
