package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/gradectl/internal/dataset"
	"github.com/KaramelBytes/gradectl/internal/filter"
)

// filterFlags are the criteria overrides shared by run and snapshot.
type filterFlags struct {
	profil   []string
	material []string
	depthMin float64
	depthMax float64
	group    string
	metrics  []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.profil, "profil", nil, "allowed Profil values (repeatable; default all observed)")
	cmd.Flags().StringSliceVar(&f.material, "material", nil, "allowed Material values (repeatable; default all observed)")
	cmd.Flags().Float64Var(&f.depthMin, "depth-min", 0, "minimum Depth, inclusive (default observed minimum)")
	cmd.Flags().Float64Var(&f.depthMax, "depth-max", 0, "maximum Depth, inclusive (default observed maximum)")
	cmd.Flags().StringVar(&f.group, "group-by", dataset.ColMaterial, "column to group statistics by")
	cmd.Flags().StringSliceVar(&f.metrics, "metric", nil, "numeric columns to summarize (default feature columns)")
}

// overrides keeps only the parts the user actually set.
func (f *filterFlags) overrides(cmd *cobra.Command) filter.Overrides {
	var o filter.Overrides
	fl := cmd.Flags()
	if fl.Changed("profil") {
		o.Profil = nonNil(f.profil)
	}
	if fl.Changed("material") {
		o.Material = nonNil(f.material)
	}
	if fl.Changed("depth-min") {
		v := f.depthMin
		o.DepthMin = &v
	}
	if fl.Changed("depth-max") {
		v := f.depthMax
		o.DepthMax = &v
	}
	return o
}

func (f *filterFlags) metricColumns() []string {
	if len(f.metrics) > 0 {
		return f.metrics
	}
	return cfg.FeatureColumns
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// readTable reads path, or stdin when path is "-".
func readTable(path, sheet, delimiter string) (*dataset.RawTable, error) {
	opt := dataset.ReadOptions{Sheet: sheet}
	switch delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return nil, fmt.Errorf("unsupported --delimiter: %s", delimiter)
	}
	if path == "-" {
		return dataset.Read(os.Stdin, "stdin.csv", opt)
	}
	return dataset.ReadFile(path, opt)
}

func printDomain(w io.Writer, c *dataset.Collection) {
	d := filter.Domain(c)
	fmt.Fprintf(w, "  Profil:   %s\n", strings.Join(d.Profil, ", "))
	fmt.Fprintf(w, "  Material: %s\n", strings.Join(d.Material, ", "))
	fmt.Fprintf(w, "  Depth:    %g to %g\n", d.DepthMin, d.DepthMax)
}
