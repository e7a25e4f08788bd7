package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/gitmap-dev/gitmap/bulk"
	"github.com/gitmap-dev/gitmap/core"
	"github.com/gitmap-dev/gitmap/remote"
	"github.com/gitmap-dev/gitmap/watch"
)

// portalFor builds a portal client from the repository's remote
// configuration. The token comes from the environment so it never
// lands in the repository config.
func portalFor(ctx context.Context, args []string) (*core.Repository, *remote.Client, string, error) {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	token := fs.String("token", os.Getenv("GITMAP_TOKEN"), "portal access token")
	fs.Parse(args)
	branch := ""
	if fs.NArg() > 0 {
		branch = fs.Arg(0)
	}
	repo, err := openRepo(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	cfg, err := repo.Config(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	if cfg.Remote == nil || cfg.Remote.URL == "" {
		return nil, nil, "", errors.New("no remote configured")
	}
	return repo, remote.NewClient(cfg.Remote.URL, *token), branch, nil
}

func runPush(ctx context.Context, args []string) error {
	repo, portal, branch, err := portalFor(ctx, args)
	if err != nil {
		return err
	}
	result, err := remote.Push(ctx, repo, portal, branch)
	if err != nil {
		return err
	}
	fmt.Printf("Pushed %s to item %s\n", commitStyle.Render(result.Commit.Short()), result.ItemID)
	return nil
}

func runPull(ctx context.Context, args []string) error {
	repo, portal, branch, err := portalFor(ctx, args)
	if err != nil {
		return err
	}
	result, err := remote.Pull(ctx, repo, portal, branch)
	if err != nil {
		return err
	}
	if result.UpToDate {
		fmt.Println("Already up to date.")
		return nil
	}
	fmt.Printf("Pulled item %s as %s\n", result.ItemID, commitStyle.Render(result.Commit.Short()))
	return nil
}

func runSetup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	token := fs.String("token", os.Getenv("GITMAP_TOKEN"), "portal access token")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: setup [-token <t>] <manifest.yaml>")
	}
	manifest, err := bulk.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	portal := remote.NewClient(manifest.Portal, *token)
	results, err := bulk.Run(ctx, manifest, portal)
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", removedStyle.Render("failed"), r.Dir, r.Err)
		} else {
			fmt.Printf("%s %s (%s)\n", addedStyle.Render("cloned"), r.Dir, r.ItemID)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed", failed, len(results))
	}
	return nil
}

// runWatch prints repository state changes until interrupted.
func runWatch(ctx context.Context, args []string) error {
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	watcher, err := watch.New(repo)
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Println(dimStyle.Render("Watching repository, press Ctrl-C to stop."))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			status := event.Status
			where := status.Branch
			if status.Detached {
				where = "detached " + short(status.Commit)
			}
			fmt.Printf("%s %s on %s\n", dimStyle.Render("changed:"), status.State, branchStyle.Render(where))
		}
	}
}
