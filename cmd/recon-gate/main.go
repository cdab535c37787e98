package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"bitbucket.org/mmjourneys/travel_backend/workflow"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// recon-gate runs the reconciliation gate once and prints the verdict.
// Exit code 0 on PASS, 1 on FAIL so it can guard cutover pipelines.
func main() {
	businessID := flag.String("business-id", "", "Business id to gate (falls back to BUSINESS_ID env)")
	runID := flag.Uint("run-id", 0, "Optional: reconciliation run id to attribute the report to")
	exportPath := flag.String("export", "", "Optional: write the report as an xlsx workbook to this path (falls back to GATE_EXPORT_XLSX env)")
	flag.Parse()

	_ = godotenv.Load()

	bid := strings.TrimSpace(*businessID)
	if bid == "" {
		bid = strings.TrimSpace(os.Getenv("BUSINESS_ID"))
	}
	if bid == "" {
		fmt.Fprintln(os.Stderr, "business id is required (-business-id flag or BUSINESS_ID env)")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(2)
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), bid)
	correlationId := uuid.NewString()
	ctx = utils.SetCorrelationIdInContext(ctx, correlationId)

	report, err := workflow.RunGate(ctx, db, bid, *runID, correlationId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gate run failed: %v\n", err)
		os.Exit(2)
	}

	fmt.Print(report.Summary())

	out := strings.TrimSpace(*exportPath)
	if out == "" {
		out = strings.TrimSpace(os.Getenv("GATE_EXPORT_XLSX"))
	}
	if out != "" {
		if err := models.ExportGateReportExcel(report, out); err != nil {
			fmt.Fprintf(os.Stderr, "xlsx export failed: %v\n", err)
		} else {
			fmt.Printf("report exported to %s\n", out)
		}
	}

	if !report.Passed() {
		os.Exit(1)
	}
}
