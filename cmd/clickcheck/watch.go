package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/workers"
)

// boardPrinter refreshes the board and prints the page it got back.
type boardPrinter struct {
	board *validation.Board
	out   io.Writer
	now   func() time.Time
}

func (p *boardPrinter) Refresh(ctx context.Context) error {
	if err := p.board.Refresh(ctx); err != nil {
		fmt.Fprintf(p.out, "[%s] erro ao atualizar: %v\n", p.now().Format("15:04:05"), err)
		return err
	}
	v := p.board.View()
	search := ""
	if v.Filter.Search != "" {
		search = fmt.Sprintf(" · busca %q", v.Filter.Search)
	}
	fmt.Fprintf(p.out, "\n[%s] %s%s · %d no total\n", p.now().Format("15:04:05"), v.Filter.Tab.Label(), search, v.Meta.Total)
	for _, r := range v.Items {
		approved, total := r.LinkCounts()
		fmt.Fprintf(p.out, "  #%s\t%s\t%d/%d\t%s\n", r.ID, r.Status.Label(), approved, total, r.Title)
	}
	return nil
}

func watchCmd(a *app) *cobra.Command {
	var tab string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the request board on screen, refreshing on an interval",
		Long: `Prints the board every poll interval. Type a search term and press
enter to filter; an empty line clears the search.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			board := validation.NewBoard(a.client, sess, 0, a.logger)
			defer board.Close()
			if tab != "" {
				t, err := validation.ParseTab(tab)
				if err != nil {
					return err
				}
				if err := board.SetTab(t); err != nil {
					return err
				}
			}

			poller := &workers.RequestPoller{
				Board:      &boardPrinter{board: board, out: cmd.OutOrStdout(), now: time.Now},
				IntervalMs: int(a.cfg.Poll.Interval / time.Millisecond),
			}
			deb := validation.NewDebouncer(a.cfg.Poll.SearchDebounce, func(term string) {
				if err := board.SetSearch(term); err != nil {
					a.say("busca ignorada: %v", err)
					return
				}
				poller.Tick(ctx)
			})
			defer deb.Stop()

			go func() {
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					deb.Input(sc.Text())
				}
			}()

			poller.Tick(ctx)
			poller.Start(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "Board tab (default: the first tab you can see)")
	return cmd
}
