package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mmdatafocus/mdm_backend/appctx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type guardedRow struct {
	ID       int
	SchoolId string
	Year     int
}

type unguardedRow struct {
	ID   int
	Name string
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:1)/guard?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Use(NewSchoolGuardPlugin()); err != nil {
		t.Fatalf("use: %v", err)
	}
	return db
}

func TestSchoolGuard_AddsFilterOnlyWhenScoped(t *testing.T) {
	db := dryRunDB(t)
	scoped := appctx.WithScope(context.Background(), appctx.Scope{SchoolId: "s1"})

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []guardedRow
		return tx.WithContext(scoped).Where("year = ?", 2024).Find(&rows)
	})
	if !strings.Contains(sql, "`guarded_rows`.`school_id` = 's1'") {
		t.Fatalf("expected school filter, got %s", sql)
	}

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []guardedRow
		return tx.WithContext(context.Background()).Where("year = ?", 2024).Find(&rows)
	})
	if strings.Contains(sql, "school_id") {
		t.Fatalf("unscoped context must not be filtered: %s", sql)
	}

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []unguardedRow
		return tx.WithContext(scoped).Find(&rows)
	})
	if strings.Contains(sql, "school_id") {
		t.Fatalf("table without school_id must not be filtered: %s", sql)
	}
}

func TestSchoolGuard_KeepsExplicitFilter(t *testing.T) {
	db := dryRunDB(t)
	scoped := appctx.WithScope(context.Background(), appctx.Scope{SchoolId: "s1"})
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []guardedRow
		return tx.WithContext(scoped).Where("school_id = ? AND year = ?", "s1", 2024).Find(&rows)
	})
	if strings.Count(sql, "school_id") != 1 {
		t.Fatalf("expected a single school filter, got %s", sql)
	}
}

func TestSchoolGuard_RejectsForeignCreate(t *testing.T) {
	db := dryRunDB(t)
	scoped := appctx.WithScope(context.Background(), appctx.Scope{SchoolId: "s1"})

	err := db.WithContext(scoped).Create(&guardedRow{SchoolId: "s2", Year: 2024}).Error
	if !errors.Is(err, ErrCrossSchoolWrite) {
		t.Fatalf("expected ErrCrossSchoolWrite, got %v", err)
	}
	err = db.WithContext(scoped).Create(&[]guardedRow{{SchoolId: "s1"}, {SchoolId: "s3"}}).Error
	if !errors.Is(err, ErrCrossSchoolWrite) {
		t.Fatalf("expected ErrCrossSchoolWrite for batch, got %v", err)
	}
	if err := db.WithContext(scoped).Create(&guardedRow{SchoolId: "s1", Year: 2024}).Error; err != nil {
		t.Fatalf("same-school create: %v", err)
	}
}
