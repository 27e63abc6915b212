package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/listingpage"
)

var (
	renderCategory string
	renderSplit    bool
	renderPageSize int
	renderMore     int
)

var renderCmd = &cobra.Command{
	Use:   "render [step...]",
	Short: "Render a category page through a sequence of refinements",
	Long: `Opens a category page and prints the settled view after each step.
Each step is a refinement query string, e.g. "q=iphone&f=manufacturer:Apple||Samsung&sort=price:DESC".
The first step is the refinement the page opens with; later steps refine it.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderCategory, "category", "c", "", "category key")
	renderCmd.Flags().BoolVar(&renderSplit, "split", false, "disable single-request strategies")
	renderCmd.Flags().IntVar(&renderPageSize, "page-size", 24, "listing page size")
	renderCmd.Flags().IntVar(&renderMore, "more", 0, "load this many extra pages after the last step")
	_ = renderCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(renderCmd)
}

type stepOutput struct {
	Step       int      `json:"step"`
	Refinement string   `json:"refinement"`
	Mode       string   `json:"mode"`
	Interacted bool     `json:"interacted"`
	Settled    bool     `json:"settled"`
	TotalCount int      `json:"total_count"`
	HasMore    bool     `json:"has_more"`
	Items      []string `json:"items"`
	Facets     []string `json:"facets"`
	Navigation string   `json:"navigation,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func runRender(cmd *cobra.Command, args []string) error {
	if endpoint == "" {
		return errors.New("--endpoint is required")
	}
	client, err := listingpage.New(endpoint,
		listingpage.WithHeaders(headers),
		listingpage.WithPreferSingleRequest(!renderSplit),
		listingpage.WithPageSize(renderPageSize),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	steps := args
	if len(steps) == 0 {
		steps = []string{""}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	page, err := client.Open(ctx, renderCategory, steps[0])
	if err != nil {
		return err
	}
	defer page.Close()

	page.Render()
	if err := printStep(ctx, cmd, page, 1); err != nil {
		return err
	}
	for i, step := range steps[1:] {
		if _, err := page.Refine(step); err != nil {
			return fmt.Errorf("step %d: %w", i+2, err)
		}
		if err := printStep(ctx, cmd, page, i+2); err != nil {
			return err
		}
	}
	for i := range renderMore {
		if !page.LoadMore() {
			break
		}
		if err := printStep(ctx, cmd, page, len(steps)+i+1); err != nil {
			return err
		}
	}
	return nil
}

func printStep(ctx context.Context, cmd *cobra.Command, page *listingpage.Page, n int) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := page.Wait(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("step %d: %w", n, err)
	}

	out := stepOutput{
		Step:       n,
		Refinement: listingpage.FormatRefinement(page.Refinement()),
		Mode:       string(v.Mode),
		Interacted: v.Interacted,
		Settled:    v.Settled,
		TotalCount: v.TotalCount,
		HasMore:    v.HasMore,
		Items:      make([]string, len(v.Items)),
		Facets:     make([]string, len(v.Facets)),
		Navigation: v.Navigation.Category.Name,
	}
	for i, it := range v.Items {
		out.Items[i] = it.UID
	}
	for i, f := range v.Facets {
		out.Facets[i] = f.Key
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal step: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
