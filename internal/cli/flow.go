package cli

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/avantix/internal/actions"
	"github.com/shaiso/avantix/internal/repo"
)

// NewFlowCmd создаёт группу команд для управления определениями flow.
func NewFlowCmd(settingsFn func() *Settings, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flow definitions",
	}

	cmd.AddCommand(
		newFlowListCmd(settingsFn, outputFn),
		newFlowPushCmd(settingsFn, outputFn),
	)

	return cmd
}

func newFlowListCmd(settingsFn func() *Settings, outputFn func() *Output) *cobra.Command {
	var stored bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flow files in --flows-dir (or the flow store with --stored)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := settingsFn()
			out := outputFn()

			if stored {
				return withFlowRepo(cmd.Context(), settings, func(ctx context.Context, r *repo.FlowRepo) error {
					flows, err := r.List(ctx)
					if err != nil {
						return err
					}

					headers := []string{"NAME", "VERSION", "UPDATED"}
					rows := make([][]string, len(flows))
					for i, f := range flows {
						rows[i] = []string{f.Name, strconv.Itoa(f.LatestVersion), f.UpdatedAt.Format(time.RFC3339)}
					}
					out.Print(headers, rows, flows)
					return nil
				})
			}

			flows, err := settings.Loader().List()
			if err != nil {
				return err
			}

			headers := []string{"FILE", "NAME", "STEPS", "ON_ERROR", "ERROR"}
			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = []string{f.File, f.Name, strconv.Itoa(f.Steps), f.OnError, f.Error}
			}
			out.Print(headers, rows, flows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&stored, "stored", false, "List flows from the Postgres store (--db-url)")

	return cmd
}

func newFlowPushCmd(settingsFn func() *Settings, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "push FILE",
		Short: "Validate a flow file and save it as a new version in the flow store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := settingsFn()
			out := outputFn()

			spec, err := settings.Loader().Load(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				spec.Name = name
			}
			if spec.Name == "" {
				return errors.New("flow has no name: set 'name' in the file or use --name")
			}

			if errs := validateSpec(spec, actions.DefaultRegistry(actions.Options{})); len(errs) > 0 {
				return errors.Join(errs...)
			}

			return withFlowRepo(cmd.Context(), settings, func(ctx context.Context, r *repo.FlowRepo) error {
				version, err := r.Save(ctx, *spec)
				if err != nil {
					return err
				}

				out.Print(
					[]string{"NAME", "VERSION", "STEPS"},
					[][]string{{version.Name, strconv.Itoa(version.Version), strconv.Itoa(len(version.Spec.Steps))}},
					version,
				)
				out.Success("Flow " + version.Name + " saved as version " + strconv.Itoa(version.Version))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Override the flow name")

	return cmd
}

// withFlowRepo открывает пул Postgres на время fn.
func withFlowRepo(ctx context.Context, settings *Settings, fn func(ctx context.Context, r *repo.FlowRepo) error) error {
	pool, err := repo.NewPool(ctx, settings.DBURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	r := repo.NewFlowRepo(pool)
	if err := r.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, r)
}
