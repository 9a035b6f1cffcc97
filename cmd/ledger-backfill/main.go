package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/mmdatafocus/mdm_backend/workflow"
)

func main() {
	schoolID := flag.String("school", "", "Optional: backfill only one school. If empty, backfills every school with attendance.")
	from := flag.String("from", "", "Optional: first period (YYYY-MM). Defaults to the school's earliest attendance month.")
	to := flag.String("to", "", "Optional: last period (YYYY-MM). Defaults to the current month.")
	kindFlag := flag.String("kind", "", "Optional: rice or amount. Defaults to both.")
	migrate := flag.Bool("migrate", false, "Run AutoMigrate before backfilling")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	config.TryConnectRedis()
	defer config.ClosePubSub()
	logger := config.GetLogger()

	if *migrate {
		models.MigrateTable()
	}

	kinds := models.ResourceKinds
	if k := strings.TrimSpace(*kindFlag); k != "" {
		kind, err := models.ParseResourceKind(k)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		kinds = []models.ResourceKind{kind}
	}

	end := models.PeriodOf(time.Now().UTC())
	if s := strings.TrimSpace(*to); s != "" {
		p, err := models.ParsePeriod(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to: %v\n", err)
			os.Exit(1)
		}
		end = p
	}
	var start *models.Period
	if s := strings.TrimSpace(*from); s != "" {
		p, err := models.ParsePeriod(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -from: %v\n", err)
			os.Exit(1)
		}
		start = &p
	}

	ctx := utils.SetUserNameInContext(context.Background(), "LedgerBackfill")

	schools := []string{strings.TrimSpace(*schoolID)}
	if schools[0] == "" {
		ids, err := models.AttendanceSchoolIds(db.WithContext(ctx))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list schools: %v\n", err)
			os.Exit(1)
		}
		schools = ids
	}
	if len(schools) == 0 {
		fmt.Fprintln(os.Stderr, "no schools found to backfill")
		return
	}

	for _, sid := range schools {
		first := start
		if first == nil {
			p, ok, err := models.FirstAttendancePeriod(db.WithContext(ctx), sid)
			if err != nil {
				fmt.Fprintf(os.Stderr, "school %s: failed to find first attendance: %v\n", sid, err)
				continue
			}
			if !ok {
				fmt.Printf("school %s: no attendance, skipping\n", sid)
				continue
			}
			first = &p
		}
		if first.After(end) {
			fmt.Printf("school %s: %s is after %s, skipping\n", sid, first, end)
			continue
		}

		fmt.Printf("Backfilling ledgers school=%s from=%s to=%s\n", sid, first, end)
		sctx := utils.SetSchoolIdInContext(ctx, sid)
		// Oldest first so each period carries forward the closing just synced.
		for p := *first; !p.After(end); p = p.Next() {
			for _, kind := range kinds {
				balance, err := workflow.SyncLedger(sctx, db, logger, kind, sid, p)
				if err != nil {
					fmt.Fprintf(os.Stderr, "school %s %s %s: %v\n", sid, kind, p, err)
					continue
				}
				fmt.Printf("  %s %s status=%s closing primary=%s middle=%s\n",
					p, kind, balance.Status, balance.Primary.Closing.StringFixed(2), balance.Middle.Closing.StringFixed(2))
			}
		}
	}
}
