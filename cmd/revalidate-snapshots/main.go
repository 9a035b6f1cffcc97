package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/mmdatafocus/mdm_backend/workflow"
)

func main() {
	schoolID := flag.String("school", "", "Optional: revalidate only one school. If empty, every school with snapshots is swept.")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing schools and continue with the others")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	// Redis is only used for the snapshot cache here.
	config.TryConnectRedis()
	defer config.ClosePubSub()
	logger := config.GetLogger()

	ctx := utils.SetUserNameInContext(context.Background(), "RevalidateSnapshots")

	schools := []string{strings.TrimSpace(*schoolID)}
	if schools[0] == "" {
		ids, err := models.SnapshotSchoolIds(db.WithContext(ctx))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list schools: %v\n", err)
			os.Exit(1)
		}
		schools = ids
	}
	if len(schools) == 0 {
		fmt.Println("no snapshots found")
		return
	}

	failed := 0
	for _, sid := range schools {
		result, err := workflow.RevalidateSnapshots(utils.SetSchoolIdInContext(ctx, sid), db, logger, sid)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "school %s: %v\n", sid, err)
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		fmt.Printf("school=%s checked=%d newly_stale=%v cascaded=%v still_stale=%d\n",
			sid, result.Checked, result.NewlyStale, result.Cascaded, result.StillStale)
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d school(s) failed\n", failed)
		os.Exit(1)
	}
}
