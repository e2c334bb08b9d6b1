package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sarchlab/fabricsim/datarecording"
	"github.com/sarchlab/fabricsim/noc/trafficgen"
	"github.com/sarchlab/fabricsim/topology"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <results.sqlite3>",
	Short: "Print the traffic and port statistics of a finished run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(cmd.Context(), args[0], cmd.OutOrStdout())
	},
}

func report(ctx context.Context, file string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := datarecording.NewReader(file)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable("traffic", trafficgen.Summary{})
	reader.MapTable("port_stats", topology.PortStatsEntry{})

	traffic, err := reader.Query(ctx, "traffic",
		datarecording.QueryParams{OrderBy: "Name"})
	if err != nil {
		return err
	}

	summaries := make([]trafficgen.Summary, 0, len(traffic))
	for _, t := range traffic {
		summaries = append(summaries, *t.(*trafficgen.Summary))
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GENERATOR\tSENT\tRECEIVED\tERRORS\tMEAN\tP99")

	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f\t%.0f\n",
			s.Name, s.Sent, s.Received, s.Errors, s.Mean, s.P99)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "PORT\tREQ\tRESP\tDROPPED\tAVG DELAY")

	ports, err := reader.Query(ctx, "port_stats",
		datarecording.QueryParams{OrderBy: "Port"})
	if err != nil {
		return err
	}

	for _, p := range ports {
		e := p.(*topology.PortStatsEntry)
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f\n",
			e.Port, e.ReqCount, e.RespCount, e.Dropped, e.AvgDelay)
	}

	return w.Flush()
}
