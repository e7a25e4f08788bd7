package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/gitmap-dev/gitmap/core"
	"github.com/gitmap-dev/gitmap/diff"
	"github.com/gitmap-dev/gitmap/remote"
)

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	name := fs.String("name", "", "author name")
	email := fs.String("email", "", "author email")
	project := fs.String("project", "", "project name")
	fs.Parse(args)

	if *name == "" || *project == "" {
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Your name").Value(name),
			huh.NewInput().Title("Your email").Value(email),
			huh.NewInput().Title("Project name").Value(project),
		))
		if err := form.Run(); err != nil {
			return err
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	repo, err := core.Init(ctx, wd, &core.Config{
		UserName:    *name,
		UserEmail:   *email,
		ProjectName: *project,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Initialized empty repository in %s\n", repo.Root())
	return nil
}

func runClone(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clone", flag.ExitOnError)
	portalURL := fs.String("portal", "", "portal base url")
	token := fs.String("token", "", "portal access token")
	dir := fs.String("dir", "", "target directory (default: item id)")
	fs.Parse(args)
	if fs.NArg() != 1 || *portalURL == "" {
		return errors.New("usage: clone -portal <url> [-token <t>] [-dir <dir>] <item-id>")
	}
	itemID := fs.Arg(0)
	target := *dir
	if target == "" {
		target = itemID
	}
	portal := remote.NewClient(*portalURL, *token)
	repo, err := remote.CloneItem(ctx, portal, target, itemID, &core.Config{
		Remote: &core.RemoteConfig{Name: "origin", URL: *portalURL},
	})
	if err != nil {
		return err
	}
	fmt.Printf("Cloned into %s\n", repo.Root())
	return nil
}

func runStatus(ctx context.Context, args []string) error {
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	status, err := repo.Status(ctx)
	if err != nil {
		return err
	}
	if status.Detached {
		fmt.Printf("HEAD detached at %s\n", commitStyle.Render(short(status.Commit)))
	} else {
		fmt.Printf("On branch %s\n", branchStyle.Render(status.Branch))
	}
	switch status.State {
	case core.StateNoHistory:
		fmt.Println("No commits yet")
	case core.StateClean:
		fmt.Println("Nothing to commit, working document clean")
	case core.StateDirty:
		fmt.Println("Uncommitted changes:")
		d, err := repo.IndexDiff(ctx)
		if err != nil {
			return err
		}
		printDiff(d)
	case core.StateMerging:
		fmt.Println(conflictStyle.Render("Merge in progress"))
		if len(status.Conflicts) > 0 {
			fmt.Println("Unresolved conflicts:")
			for _, key := range status.Conflicts {
				fmt.Printf("  %s %s\n", conflictStyle.Render("!"), key)
			}
			fmt.Println(dimStyle.Render("Run 'gitmap resolve' to resolve, or 'gitmap abort'."))
		} else {
			fmt.Println(dimStyle.Render("All conflicts resolved. Run 'gitmap commit' to finish."))
		}
	}
	return nil
}

func runLog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	limit := fs.Int("n", 0, "limit the number of commits")
	fs.Parse(args)

	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	rev := ""
	if fs.NArg() > 0 {
		rev = fs.Arg(0)
	}
	entries, err := repo.Log(ctx, rev, *limit)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		c := entry.Commit
		fmt.Printf("%s %s", commitStyle.Render("commit "+c.Short()), dimStyle.Render(c.Timestamp.Local().Format("2006-01-02 15:04:05")))
		if entry.Merge {
			fmt.Printf(" %s", tagStyle.Render("(merge)"))
		}
		fmt.Println()
		fmt.Printf("Author: %s <%s>\n", c.Author, c.Email)
		for _, line := range strings.Split(c.Message, "\n") {
			fmt.Printf("    %s\n", line)
		}
		fmt.Println()
	}
	return nil
}

func runDiff(ctx context.Context, args []string) error {
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	d, err := repo.IndexDiff(ctx)
	if err != nil {
		return err
	}
	if d.Empty() {
		fmt.Println("No changes detected.")
		return nil
	}
	printDiff(d)
	return nil
}

func printDiff(d *diff.Result) {
	for _, line := range strings.Split(d.Summary(), "\n") {
		switch {
		case strings.HasPrefix(line, "  +"):
			fmt.Println(addedStyle.Render(line))
		case strings.HasPrefix(line, "  -"):
			fmt.Println(removedStyle.Render(line))
		case strings.HasPrefix(line, "  ~"):
			fmt.Println(modifiedStyle.Render(line))
		default:
			fmt.Println(line)
		}
	}
}

func runCommit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	message := fs.String("m", "", "commit message")
	fs.Parse(args)

	if *message == "" {
		input := huh.NewInput().Title("Commit message").Value(message)
		if err := input.Run(); err != nil {
			return err
		}
	}
	if strings.TrimSpace(*message) == "" {
		return errors.New("a commit message is required")
	}
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	commit, err := repo.Commit(ctx, *message, "", "")
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %s\n", commitStyle.Render(commit.Short()), firstLine(commit.Message))
	return nil
}

func runCheckout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	create := fs.Bool("b", false, "create the branch before switching")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: checkout [-b] <branch|tag|commit>")
	}
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	rev := fs.Arg(0)
	if err := repo.Checkout(ctx, rev, *create); err != nil {
		return err
	}
	head, err := repo.Head(ctx)
	if err != nil {
		return err
	}
	if head.Detached() {
		fmt.Printf("HEAD is now detached at %s\n", commitStyle.Render(short(head.Commit)))
	} else {
		fmt.Printf("Switched to branch %s\n", branchStyle.Render(head.Branch))
	}
	return nil
}

func runBranch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("branch", flag.ExitOnError)
	del := fs.String("d", "", "delete a branch")
	fs.Parse(args)

	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	if *del != "" {
		if err := repo.DeleteBranch(ctx, *del); err != nil {
			return err
		}
		fmt.Printf("Deleted branch %s\n", *del)
		return nil
	}
	if fs.NArg() > 0 {
		rev := ""
		if fs.NArg() > 1 {
			rev = fs.Arg(1)
		}
		if err := repo.CreateBranch(ctx, fs.Arg(0), rev); err != nil {
			return err
		}
		fmt.Printf("Created branch %s\n", branchStyle.Render(fs.Arg(0)))
		return nil
	}
	branches, err := repo.Branches(ctx)
	if err != nil {
		return err
	}
	head, err := repo.Head(ctx)
	if err != nil {
		return err
	}
	for _, name := range branches {
		if name == head.Branch {
			fmt.Printf("* %s\n", branchStyle.Render(name))
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func runTag(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tag", flag.ExitOnError)
	del := fs.String("d", "", "delete a tag")
	fs.Parse(args)

	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	if *del != "" {
		if err := repo.DeleteTag(ctx, *del); err != nil {
			return err
		}
		fmt.Printf("Deleted tag %s\n", *del)
		return nil
	}
	if fs.NArg() > 0 {
		rev := ""
		if fs.NArg() > 1 {
			rev = fs.Arg(1)
		}
		if err := repo.CreateTag(ctx, fs.Arg(0), rev); err != nil {
			return err
		}
		fmt.Printf("Created tag %s\n", tagStyle.Render(fs.Arg(0)))
		return nil
	}
	tags, err := repo.Tags(ctx)
	if err != nil {
		return err
	}
	for _, name := range tags {
		fmt.Println(tagStyle.Render(name))
	}
	return nil
}

func runStash(ctx context.Context, args []string) error {
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	sub := "save"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "save", "push":
		message := ""
		if len(args) > 0 {
			message = strings.Join(args, " ")
		}
		entry, err := repo.StashSave(ctx, message)
		if err != nil {
			return err
		}
		fmt.Printf("Saved working document as stash %s\n", short(entry.ID))
	case "pop":
		entry, err := repo.StashPop(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Restored stash %s\n", short(entry.ID))
	case "drop":
		entry, err := repo.StashDrop(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Dropped stash %s\n", short(entry.ID))
	case "clear":
		if err := repo.StashClear(ctx); err != nil {
			return err
		}
		fmt.Println("Cleared the stash")
	case "list":
		stack, err := repo.StashList(ctx)
		if err != nil {
			return err
		}
		for i, entry := range stack {
			label := entry.Message
			if label == "" {
				label = "WIP on " + entry.Branch
			}
			fmt.Printf("stash@{%d}: %s %s\n", i, label, dimStyle.Render(entry.Timestamp.Local().Format("2006-01-02 15:04")))
		}
	default:
		return fmt.Errorf("unknown stash command %q", sub)
	}
	return nil
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
