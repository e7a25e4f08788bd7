package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/gitmap-dev/gitmap/core"
	"github.com/gitmap-dev/gitmap/remote"
)

const usage = `gitmap versions web map documents.

Usage: gitmap <command> [arguments]

Repository
  init        create a repository in the current directory
  clone       create a repository from a portal item
  status      show the working state
  log         show commit history
  diff        show uncommitted changes

History
  commit      record the working document as a commit
  checkout    switch branches or restore a commit
  branch      list, create or delete branches
  tag         list, create or delete tags
  stash       shelve and restore uncommitted changes

Merging
  merge       merge a branch into the current branch
  resolve     resolve merge conflicts
  abort       abort an in-progress merge
  cherry-pick apply a single commit onto the current branch
  revert      record a commit that undoes another

Remote
  push        write a branch tip to the portal
  pull        fetch the portal document as a new commit
  setup       clone many items from a YAML manifest
  watch       report repository changes as they happen
`

func main() {
	log.SetLevel(log.WarnLevel)
	args := os.Args[1:]
	for i, a := range args {
		if a == "-v" || a == "--verbose" {
			log.SetLevel(log.DebugLevel)
			args = append(args[:i:i], args[i+1:]...)
			break
		}
	}
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	cmd, args := args[0], args[1:]
	ctx := context.Background()

	var err error
	switch cmd {
	case "init":
		err = runInit(ctx, args)
	case "clone":
		err = runClone(ctx, args)
	case "status":
		err = runStatus(ctx, args)
	case "log":
		err = runLog(ctx, args)
	case "diff":
		err = runDiff(ctx, args)
	case "commit":
		err = runCommit(ctx, args)
	case "checkout":
		err = runCheckout(ctx, args)
	case "branch":
		err = runBranch(ctx, args)
	case "tag":
		err = runTag(ctx, args)
	case "stash":
		err = runStash(ctx, args)
	case "merge":
		err = runMerge(ctx, args)
	case "resolve":
		err = runResolve(ctx, args)
	case "abort":
		err = runAbort(ctx, args)
	case "cherry-pick":
		err = runCherryPick(ctx, args)
	case "revert":
		err = runRevert(ctx, args)
	case "push":
		err = runPush(ctx, args)
	case "pull":
		err = runPull(ctx, args)
	case "setup":
		err = runSetup(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "gitmap: unknown command %q\n\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "gitmap: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates expected domain outcomes (1) from storage and
// remote failures (2).
func exitCode(err error) int {
	var serr *core.StorageError
	if errors.As(err, &serr) {
		return 2
	}
	switch {
	case errors.Is(err, remote.ErrItemNotFound),
		errors.Is(err, remote.ErrUnauthorized),
		errors.Is(err, remote.ErrPermissionDenied),
		errors.Is(err, remote.ErrRemoteConflict):
		return 2
	}
	return 1
}

// openRepo finds the repository containing the working directory.
func openRepo(ctx context.Context) (*core.Repository, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return core.Find(ctx, wd)
}
