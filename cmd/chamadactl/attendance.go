package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/chamada/internal/app"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Read the attendance journal",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent attendance events",
	Args:  cobra.NoArgs,
	RunE:  runAttendanceList,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)

	attendanceListCmd.Flags().Int("limit", service.DefaultAttendanceLimit, "Maximum number of events")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := service.NewAttendanceService(st.Attendance).Recent(ctx, mustGetInt(cmd, "limit"))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(events)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tNAME\tCONTACT")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp.Local().Format(time.DateTime), e.IdentityName, e.Contact)
	}
	return w.Flush()
}
