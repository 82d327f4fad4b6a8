package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"plancal/internal/chat"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/mcpserver"
	"plancal/internal/seed"
	"plancal/internal/store"
	"plancal/internal/view"
	"plancal/internal/web"
)

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled ICS refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				conf.Listen = listen
			}

			appLog.Info("plancal starting", "version", version)
			appLog.Info("effective config",
				"listen", conf.Listen,
				"timezone", conf.Timezone,
				"week_start", conf.WeekStart,
				"refresh", conf.RefreshCron,
				"seed_sample", conf.SeedSample,
				"ics_count", len(conf.ICS),
			)

			ctx, cancel := signalContext()
			defer cancel()

			a := newApp(conf)
			a.sync(ctx)
			if a.syncer != nil {
				c, err := a.syncer.Schedule(ctx, conf.RefreshCron)
				if err != nil {
					return err
				}
				defer func() { <-c.Stop().Done() }()
			}

			srv := web.NewServer(conf, web.Deps{
				Activities: a.activities,
				Categories: a.categories,
				Chat:       a.chatService(),
			})
			if err := srv.Run(ctx); err != nil {
				return err
			}
			appLog.Info("plancal exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve per-user events as protocol tools and resources over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			loc, _ := conf.Location()

			activities := store.NewActivityStore()
			activities.Seed(seed.Upcoming(time.Now()))

			return mcpserver.New(activities, mcpserver.WithLocation(loc)).ServeStdio()
		},
	}
}

func expandCmd() *cobra.Command {
	var viewName, date string

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the occurrences of one calendar view",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			g, err := view.ParseGranularity(viewName)
			if err != nil {
				return err
			}

			a := newApp(conf)
			anchor := time.Now().In(a.loc)
			if date != "" {
				if anchor, err = time.ParseInLocation(time.DateOnly, date, a.loc); err != nil {
					if anchor, err = chat.ParseTime(date, a.loc); err != nil {
						return err
					}
				}
			}

			ctx, cancel := signalContext()
			defer cancel()
			a.sync(ctx)

			p := view.NewProjector(a.activities, a.categories,
				view.WithWeekStart(conf.WeekStartDay()),
				view.WithMaxOccurrences(conf.MaxOccurrences),
			).Project(g, anchor.In(a.loc))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s view: %s .. %s\n\n", p.Granularity,
				p.RangeStart.Format("Mon 2006-01-02"), p.RangeEnd.Format("Mon 2006-01-02"))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "START\tEND\tTITLE\tCATEGORY\tRECURRING")
			for _, e := range p.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
					e.Start.In(a.loc).Format("Mon 01-02 15:04"),
					e.End.In(a.loc).Format("15:04"),
					e.Title, e.Category.Name, e.Recurring)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(p.Truncated) > 0 {
				fmt.Fprintf(out, "\ntruncated: %v\n", p.Truncated)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&viewName, "view", "week", "day | week | month | agenda")
	cmd.Flags().StringVar(&date, "date", "", "anchor date, YYYY-MM-DD (default today)")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the activity templates as an iCalendar feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			a := newApp(conf)

			ctx, cancel := signalContext()
			defer cancel()
			a.sync(ctx)

			_, err = fmt.Fprint(cmd.OutOrStdout(), ics.Encode(a.activities.List(), time.Now()))
			return err
		},
	}
}
