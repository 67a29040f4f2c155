package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/config"
	"github.com/example/tablebook/internal/logger"
	"github.com/example/tablebook/internal/reservation"
	"github.com/spf13/cobra"
)

func newSlotsCmd() *cobra.Command {
	var (
		f            storeFlags
		restaurantID string
		date         string
		party        string
		times        string
	)

	c := &cobra.Command{
		Use:   "slots",
		Short: "Print the slot table for a restaurant, date and party size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			p, err := reservation.ParsePartySize(party)
			if err != nil {
				return fmt.Errorf("invalid --party: %w", err)
			}
			only, err := parseTimes(times)
			if err != nil {
				return err
			}
			if date == "" {
				date = time.Now().In(cfg.Location()).Format(time.DateOnly)
			}

			ctx := context.Background()
			a, err := openApp(ctx, cfg, f, logger.Discard())
			if err != nil {
				return err
			}
			defer a.Close()

			slots, err := a.service(nil).Availability(ctx, restaurantID, date, p)
			if err != nil {
				return err
			}
			return printSlots(cmd.OutOrStdout(), filterSlots(slots, only))
		},
	}

	c.Flags().StringVar(&f.store, "store", "", "reservation store: postgres or memory (default from STORE)")
	c.Flags().StringVar(&f.seed, "seed", "", "JSON seed file, required with --store=memory")
	c.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant id")
	c.Flags().StringVar(&date, "date", "", "service date YYYY-MM-DD (default today)")
	c.Flags().StringVar(&party, "party", "2", "party size (1-20, or 20+)")
	c.Flags().StringVar(&times, "times", "", "only show these comma-separated times (HH:MM)")
	_ = c.MarkFlagRequired("restaurant")
	return c
}

func parseTimes(s string) (map[calendar.ClockTime]bool, error) {
	parts := splitCSV(s)
	if len(parts) == 0 {
		return nil, nil
	}
	only := map[calendar.ClockTime]bool{}
	for _, p := range parts {
		t, err := calendar.ParseClock(p)
		if err != nil {
			return nil, fmt.Errorf("invalid --times: %w", err)
		}
		only[t] = true
	}
	return only, nil
}

// filterSlots keeps slots whose wall-clock time is in only; nil keeps all.
func filterSlots(slots []availability.Slot, only map[calendar.ClockTime]bool) []availability.Slot {
	if only == nil {
		return slots
	}
	var out []availability.Slot
	for _, s := range slots {
		if only[s.Time.Mod()] {
			out = append(out, s)
		}
	}
	return out
}

func printSlots(w io.Writer, slots []availability.Slot) error {
	if len(slots) == 0 {
		_, err := fmt.Fprintln(w, "no slots")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTABLES\tSTATUS")
	for _, s := range slots {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Time, s.AvailableTables, s.Status)
	}
	return tw.Flush()
}
