package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/gitmap-dev/gitmap/core"
	"github.com/gitmap-dev/gitmap/merge"
)

func runMerge(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: merge <branch>")
	}
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	outcome, err := repo.Merge(ctx, args[0])
	if err != nil {
		return err
	}
	return reportOutcome(outcome)
}

func runCherryPick(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cherry-pick <commit>")
	}
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	outcome, err := repo.CherryPick(ctx, args[0])
	if err != nil {
		return err
	}
	return reportOutcome(outcome)
}

func runRevert(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: revert <commit>")
	}
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	outcome, err := repo.Revert(ctx, args[0])
	if err != nil {
		return err
	}
	return reportOutcome(outcome)
}

func reportOutcome(outcome *core.MergeOutcome) error {
	switch {
	case outcome.UpToDate:
		fmt.Println("Already up to date.")
	case outcome.Commit != nil:
		fmt.Printf("[%s] %s\n", commitStyle.Render(outcome.Commit.Short()), firstLine(outcome.Commit.Message))
	default:
		fmt.Println(conflictStyle.Render(fmt.Sprintf("%d conflict(s):", len(outcome.Conflicts))))
		for _, c := range outcome.Conflicts {
			fmt.Printf("  %s %s\n", conflictStyle.Render("!"), conflictLabel(c))
		}
		fmt.Println(dimStyle.Render("Run 'gitmap resolve' to resolve them, then 'gitmap commit'."))
	}
	return nil
}

// runResolve walks the unresolved conflicts one by one, asking which
// side to keep, and finishes the merge commit once all are resolved.
func runResolve(ctx context.Context, args []string) error {
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	conflicts, err := repo.Conflicts(ctx)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Println("All conflicts resolved. Run 'gitmap commit' to finish.")
		return nil
	}
	for _, c := range conflicts {
		choice, err := askResolution(c)
		if err != nil {
			return err
		}
		if choice == "" {
			fmt.Println("Resolution stopped, remaining conflicts kept.")
			return nil
		}
		if err := repo.ResolveConflict(ctx, c.Key, choice, nil); err != nil {
			return err
		}
		fmt.Printf("Resolved %s with %s\n", c.Key, choice)
	}
	fmt.Println("All conflicts resolved. Run 'gitmap commit' to finish.")
	return nil
}

func askResolution(c merge.Conflict) (string, error) {
	options := []huh.Option[string]{
		huh.NewOption("Keep ours"+candidateNote(c.Ours), merge.ChooseOurs),
		huh.NewOption("Keep theirs"+candidateNote(c.Theirs), merge.ChooseTheirs),
	}
	if c.Base != nil {
		options = append(options, huh.NewOption("Restore the common base", merge.ChooseBase))
	}
	options = append(options, huh.NewOption("Skip for now", ""))

	var choice string
	err := huh.NewSelect[string]().
		Title("Conflict: " + conflictLabel(c)).
		Options(options...).
		Value(&choice).
		Run()
	if err != nil {
		return "", err
	}
	return choice, nil
}

func conflictLabel(c merge.Conflict) string {
	label := string(c.Kind) + " " + c.Key
	if c.Title != "" && c.Title != c.Key {
		label += " (" + c.Title + ")"
	}
	return label
}

func candidateNote(v any) string {
	if v == nil {
		return " (deleted)"
	}
	return ""
}

func runAbort(ctx context.Context, args []string) error {
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	if err := repo.AbortMerge(ctx); err != nil {
		return err
	}
	fmt.Println("Merge aborted, working document restored.")
	return nil
}
