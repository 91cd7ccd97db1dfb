package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/kbukum/modelkit/builder"
	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/pipeline"
	"github.com/kbukum/modelkit/registry"
	"github.com/kbukum/modelkit/unit"
	"github.com/kbukum/modelkit/version"
)

func newCLI(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "modelkit",
		Short:         "Build and run inference pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default: ./modelkit.yml)")

	root.AddCommand(
		newTasksCmd(),
		newDevicesCmd(a),
		newFetchCmd(a),
		newRunCmd(a),
		newVersionCmd(),
	)
	return root
}

func newTable(cmd *cobra.Command, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	return table
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List tasks, their defaults and registered variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := registry.Global()
			tasks := lo.Union(builder.DefaultTasks.List(), reg.Tasks())
			sort.Strings(tasks)
			table := newTable(cmd, []string{"TASK", "DEFAULT", "MODEL", "VARIANTS"})
			for _, task := range tasks {
				def, _ := builder.DefaultTasks.Default(task)
				table.Append([]string{task, orDash(def.Variant), orDash(def.Model), strings.Join(reg.Variants(task), ", ")})
			}
			table.Render()
			return nil
		},
	}
}

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Show detected accelerators and the default device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv := a.placer.Inventory(cmd.Context())
			table := newTable(cmd, []string{"DEVICE", "LIBRARY", "NAME"})
			table.Append([]string{"cpu", "-", "-"})
			for _, acc := range inv.Accelerators {
				table.Append([]string{"gpu:" + strconv.Itoa(acc.ID), acc.Library, orDash(acc.Name)})
			}
			table.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "\ndefault: %s\n", a.placer.Default(cmd.Context()))
			return nil
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	var revision string
	cmd := &cobra.Command{
		Use:   "fetch MODEL",
		Short: "Download a model artifact into the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.hub.Resolve(cmd.Context(), args[0], revision)
			if err != nil {
				return renderError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "model revision (default from hub.default_revision)")
	return cmd
}

type runFlags struct {
	model       string
	revision    string
	variant     string
	device      string
	batchPolicy string
	batchSize   int
	set         map[string]string
}

// itemResult is one line of batch output.
type itemResult struct {
	Index  int               `json:"index"`
	Output unit.Output       `json:"output,omitempty"`
	Error  *errors.ErrorBody `json:"error,omitempty"`
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run TASK INPUT...",
		Short: "Build a pipeline for TASK and run it on the inputs",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f, args[0], args[1:])
		},
	}
	cmd.Flags().StringVar(&f.model, "model", "", "model key or local directory")
	cmd.Flags().StringVar(&f.revision, "revision", "", "model revision")
	cmd.Flags().StringVar(&f.variant, "variant", "", "unit variant")
	cmd.Flags().StringVar(&f.device, "device", "", "device such as cpu or gpu:0")
	cmd.Flags().StringVar(&f.batchPolicy, "batch-policy", "", "fail-fast or collect")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", -1, "inputs per native batch call")
	cmd.Flags().StringToStringVar(&f.set, "set", nil, "unit configuration key=value")
	return cmd
}

func (a *app) run(cmd *cobra.Command, f runFlags, task string, inputs []string) error {
	ctx := cmd.Context()
	pcfg := a.cfg.Pipeline
	if f.batchPolicy != "" {
		pcfg.BatchPolicy = f.batchPolicy
	}
	if f.batchSize >= 0 {
		pcfg.BatchSize = f.batchSize
	}
	popts, err := pcfg.Options()
	if err != nil {
		return renderError(cmd, err)
	}
	dev := lo.Ternary(f.device != "", f.device, pcfg.Device)
	if dev == "" {
		dev = a.cfg.Device.Default
	}

	opts := []builder.Option{
		builder.WithModel(f.model),
		builder.WithRevision(f.revision),
		builder.WithVariant(f.variant),
		builder.WithDevice(dev),
		builder.WithResolver(a.hub),
		builder.WithPlacer(a.placer),
		builder.WithMetrics(a.metrics),
		builder.WithPipelineOptions(popts...),
	}
	if len(f.set) > 0 {
		opts = append(opts, builder.WithConfig(lo.MapValues(f.set, func(v string, _ string) any { return v })))
	}
	p, err := builder.Build(ctx, task, opts...)
	if err != nil {
		return renderError(cmd, err)
	}
	defer p.Close()

	if len(inputs) == 1 {
		out, err := p.Invoke(ctx, inputs[0], nil)
		if err != nil {
			return renderError(cmd, err)
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	raws := lo.Map(inputs, func(in string, _ int) any { return in })
	outs, err := p.InvokeBatch(ctx, raws, nil)
	var batchErr *pipeline.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		return renderError(cmd, err)
	}
	results := make([]itemResult, len(inputs))
	for i := range inputs {
		results[i].Index = i
		if outs != nil {
			results[i].Output = outs[i]
		}
		if batchErr != nil {
			if itemErr := batchErr.ErrorAt(i); itemErr != nil {
				body := errors.ToResponse(itemErr).Error
				results[i].Error = &body
			}
		}
	}
	if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if batchErr != nil {
		return fmt.Errorf("%d of %d inputs failed", len(batchErr.Items), len(inputs))
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the modelkit version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetVersionInfo()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "modelkit %s %s %s\n", info, info.GoVersion, info.Platform)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// renderError prints err as a JSON error response on stderr and returns it.
func renderError(cmd *cobra.Command, err error) error {
	_ = writeJSON(cmd.ErrOrStderr(), errors.ToResponse(err))
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
