package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fulfillments/internal/config"
	"fulfillments/internal/infra"
	"fulfillments/internal/modules/channel"
	"fulfillments/internal/modules/order"
	"fulfillments/internal/modules/routing"
	"fulfillments/internal/modules/tasks"
	"fulfillments/internal/types"
)

type rootOptions struct {
	Format  string
	Verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "fulfillmentsctl",
		Short:         "Operate the fulfillments dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(newTasksCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newCanTransitionCommand(opts))
	cmd.AddCommand(newRulesCommand(opts))
	return cmd
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newTasksCommand(opts *rootOptions) *cobra.Command {
	var channels []string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Print the current task list for one or more channels",
		Long:  "Print the current task list. Without --channel every channel is listed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := opts.logger(cmd.ErrOrStderr())
			ctx := cmd.Context()

			db, err := infra.NewDB(ctx, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			ids := make([]types.ID, len(channels))
			for i, c := range channels {
				ids[i] = types.ID(c)
			}
			if len(ids) == 0 {
				if ids, err = channel.NewStore(db).IDs(ctx); err != nil {
					return err
				}
			}

			svc := tasks.NewService(order.NewStore(db), log, tasks.Options{
				Location: cfg.Location(),
				Links:    tasks.PlainLinks{},
			})
			lists := make(map[types.ID][]tasks.Task, len(ids))
			for _, id := range ids {
				list, err := svc.GetTasks(ctx, id)
				if err != nil {
					return fmt.Errorf("channel %s: %w", id, err)
				}
				lists[id] = list
			}
			return printTasks(cmd.OutOrStdout(), opts.Format, ids, lists)
		},
	}
	cmd.Flags().StringSliceVar(&channels, "channel", nil, "channel id (repeatable)")
	return cmd
}

func printTasks(w io.Writer, format string, ids []types.ID, lists map[types.ID][]tasks.Task) error {
	if format == "json" {
		out := make(map[types.ID][]tasks.Task, len(ids))
		for _, id := range ids {
			out[id] = lists[id]
			if out[id] == nil {
				out[id] = []tasks.Task{}
			}
		}
		return writeJSON(w, out)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, id := range ids {
		fmt.Fprintf(tw, "# %s (%d)\n", id, len(lists[id]))
		for _, t := range lists[id] {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Tag, t.State, t.TaskName)
		}
	}
	return tw.Flush()
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var after time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark stale ReadyForCollection orders as NoCollection once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if after <= 0 {
				after = cfg.Sweep.After
			}
			log := opts.logger(cmd.ErrOrStderr())
			ctx := cmd.Context()

			db, err := infra.NewDB(ctx, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			var publishers []order.Publisher
			if redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr); err != nil {
				log.Warn("route cache not invalidated", "error", err)
			} else {
				defer redisClient.Close()
				publishers = append(publishers, routing.NewRedisCache(redisClient, cfg.Redis.RouteTTL))
			}
			if cfg.AMQP.URL != "" {
				broker, err := infra.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
				if err != nil {
					return err
				}
				defer broker.Close()
				publishers = append(publishers, order.NewBrokerPublisher(broker, 0))
			}

			graph := order.DefaultGraph(order.Policy{
				AllowReversal:      cfg.Orders.AllowReversal,
				PreparationHandoff: cfg.Orders.PreparationHandoff,
			})
			svc := order.NewService(order.NewStore(db), graph, log, publishers...)
			n, err := svc.SweepNoCollection(ctx, time.Now(), after)
			if opts.Format == "json" {
				if werr := writeJSON(cmd.OutOrStdout(), map[string]int{"transitioned": n}); werr != nil {
					return werr
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "transitioned %d order(s) to NoCollection\n", n)
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&after, "after", 0, "age past the collection date (default from config)")
	return cmd
}

func newCanTransitionCommand(opts *rootOptions) *cobra.Command {
	var policy order.Policy
	cmd := &cobra.Command{
		Use:   "can-transition FROM TO",
		Short: "Check whether the state graph allows FROM -> TO",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := order.DefaultGraph(policy)
			from, to := order.State(args[0]), order.State(args[1])
			allowed := g.IsTransitionAllowed(from, to)
			if opts.Format == "json" {
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{"from": from, "to": to, "allowed": allowed}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %v\n", from, to, allowed)
				if !allowed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s may move to: %s\n", from, joinStates(g.Successors(from)))
				}
			}
			if !allowed {
				return g.Validate(from, to)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&policy.AllowReversal, "allow-reversal", false, "include Delivered/Collected reversals")
	cmd.Flags().BoolVar(&policy.PreparationHandoff, "handoff", true, "include Preparing -> ReadyFor* handoff")
	return cmd
}

func newRulesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the task rules in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type ruleView struct {
				Name     string        `json:"name"`
				Tag      tasks.Tag     `json:"tag"`
				States   []order.State `json:"states"`
				Delivery string        `json:"delivery"`
			}
			views := make([]ruleView, len(tasks.DefaultRules))
			for i, r := range tasks.DefaultRules {
				views[i] = ruleView{Name: r.Name, Tag: r.Tag, States: r.States, Delivery: deliveryLabel(r.IsDelivery)}
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, v := range views {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, v.Name, v.Tag, v.Delivery, joinStates(v.States))
			}
			return tw.Flush()
		},
	}
}

func deliveryLabel(v *bool) string {
	switch {
	case v == nil:
		return "any"
	case *v:
		return "delivery"
	default:
		return "collection"
	}
}

func joinStates(states []order.State) string {
	if len(states) == 0 {
		return "(none)"
	}
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
