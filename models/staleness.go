package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	StaleReasonSourceChanged  = "source data changed"
	StaleReasonLedgerInbound  = "ledger inbound changed"
	StaleReasonAttendanceEdit = "attendance changed"
	StaleReasonCarryForward   = "opening carried forward"
	staleReasonSeparator      = "; "
)

// Staleness is embedded in every snapshot. SourceHash is the attendance
// digest at generation time.
type Staleness struct {
	IsStale     bool       `gorm:"not null;default:false;index" json:"is_stale"`
	StaleReason string     `gorm:"type:text" json:"stale_reason"`
	StaleSince  *time.Time `json:"stale_since"`
	SourceHash  string     `gorm:"size:64;not null" json:"source_hash"`
}

// MarkStale flags the snapshot. Reasons accumulate without duplicates and
// StaleSince keeps the first time. Returns false when nothing changed.
func (s *Staleness) MarkStale(reason string, at time.Time) bool {
	reason = strings.TrimSpace(reason)
	if !s.IsStale {
		s.IsStale = true
		s.StaleReason = reason
		s.StaleSince = &at
		return true
	}
	if reason == "" {
		return false
	}
	for _, r := range strings.Split(s.StaleReason, staleReasonSeparator) {
		if r == reason {
			return false
		}
	}
	if s.StaleReason == "" {
		s.StaleReason = reason
	} else {
		s.StaleReason += staleReasonSeparator + reason
	}
	return true
}

func (s *Staleness) Clear() {
	s.IsStale = false
	s.StaleReason = ""
	s.StaleSince = nil
}

// HashAttendance digests {(id, servedPrimary, servedMiddle)} sorted by id,
// so permutations of the same record set hash identically.
func HashAttendance(records []DailyAttendanceRecord) string {
	tuples := make([]DailyAttendanceRecord, len(records))
	copy(tuples, records)
	sort.Slice(tuples, func(i, j int) bool { return tuples[i].ID < tuples[j].ID })
	h := sha256.New()
	for _, r := range tuples {
		fmt.Fprintf(h, "%d:%d:%d\n", r.ID, r.ServedPrimary, r.ServedMiddle)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func CascadeReason(from Period, reason string) string {
	return fmt.Sprintf("Cascade from %s: %s", from, reason)
}

func persistStaleness(tx *gorm.DB, snap ReportSnapshot) error {
	st := snap.StalenessState()
	return tx.Model(snap).
		Where("school_id = ?", snap.GetSchoolId()).
		Updates(map[string]interface{}{
			"is_stale":     st.IsStale,
			"stale_reason": st.StaleReason,
			"stale_since":  st.StaleSince,
		}).Error
}

// MarkSnapshotStale applies MarkStale and persists when it changed anything.
func MarkSnapshotStale(tx *gorm.DB, snap ReportSnapshot, reason string, at time.Time) (bool, error) {
	if !snap.StalenessState().MarkStale(reason, at) {
		return false, nil
	}
	return true, persistStaleness(tx, snap)
}

func ClearSnapshotStale(tx *gorm.DB, snap ReportSnapshot) error {
	snap.StalenessState().Clear()
	return persistStaleness(tx, snap)
}

// CheckAndMarkStale rehashes the snapshot period's current attendance and
// marks the snapshot stale on mismatch. Already-stale snapshots return true
// without rehashing.
func CheckAndMarkStale(tx *gorm.DB, snap ReportSnapshot, at time.Time) (bool, error) {
	st := snap.StalenessState()
	if st.IsStale {
		return true, nil
	}
	records, err := ListAttendanceForPeriod(tx, snap.GetSchoolId(), snap.Period())
	if err != nil {
		return false, err
	}
	if HashAttendance(records) == st.SourceHash {
		return false, nil
	}
	if _, err := MarkSnapshotStale(tx, snap, StaleReasonSourceChanged, at); err != nil {
		return false, err
	}
	return true, nil
}

// ListSnapshotsAfter returns the school's snapshots of the given kinds
// strictly after from, oldest first. No kinds means every kind. Rows are read
// FOR UPDATE so concurrent markers merge reasons one at a time.
func ListSnapshotsAfter(tx *gorm.DB, schoolId string, from Period, kinds ...ResourceKind) ([]ReportSnapshot, error) {
	return listSnapshots(tx, schoolId, kinds, "(year * 12 + month) > ?", from.Index())
}

// ListSchoolSnapshots locks every snapshot of the school, oldest first.
func ListSchoolSnapshots(tx *gorm.DB, schoolId string) ([]ReportSnapshot, error) {
	return listSnapshots(tx, schoolId, nil, "1 = 1")
}

func listSnapshots(tx *gorm.DB, schoolId string, kinds []ResourceKind, cond string, args ...interface{}) ([]ReportSnapshot, error) {
	if len(kinds) == 0 {
		kinds = ResourceKinds
	}
	var out []ReportSnapshot
	for _, kind := range kinds {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("school_id = ?", schoolId).Where(cond, args...).
			Order("year ASC").Order("month ASC")
		switch kind {
		case ResourceRice:
			var rows []*RiceReportSnapshot
			if err := q.Find(&rows).Error; err != nil {
				return nil, err
			}
			for _, s := range rows {
				out = append(out, s)
			}
		case ResourceAmount:
			var rows []*AmountReportSnapshot
			if err := q.Find(&rows).Error; err != nil {
				return nil, err
			}
			for _, s := range rows {
				out = append(out, s)
			}
		default:
			return nil, fmt.Errorf("unknown resource kind %q", kind)
		}
	}
	sortSnapshots(out)
	return out, nil
}

func sortSnapshots(snaps []ReportSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		pi, pj := snaps[i].Period(), snaps[j].Period()
		if pi != pj {
			return pi.Before(pj)
		}
		return snaps[i].Kind() < snaps[j].Kind()
	})
}

// CascadeStale marks every later-period snapshot of the given kinds stale
// with a reason naming the originating period. No kinds means every kind.
// Returns the snapshots it changed.
func CascadeStale(tx *gorm.DB, schoolId string, from Period, reason string, at time.Time, kinds ...ResourceKind) ([]ReportSnapshot, error) {
	later, err := ListSnapshotsAfter(tx, schoolId, from, kinds...)
	if err != nil {
		return nil, err
	}
	return CascadeStaleIn(tx, later, from, reason, at)
}

// CascadeStaleIn is CascadeStale over snapshots the caller already holds.
// Snapshots not after from are skipped.
func CascadeStaleIn(tx *gorm.DB, snaps []ReportSnapshot, from Period, reason string, at time.Time) ([]ReportSnapshot, error) {
	cascade := CascadeReason(from, reason)
	var changed []ReportSnapshot
	for _, snap := range snaps {
		if !snap.Period().After(from) {
			continue
		}
		ok, err := MarkSnapshotStale(tx, snap, cascade, at)
		if err != nil {
			return nil, err
		}
		if ok {
			changed = append(changed, snap)
		}
	}
	return changed, nil
}

// SnapshotSchoolIds lists the schools holding at least one report snapshot.
func SnapshotSchoolIds(tx *gorm.DB) ([]string, error) {
	seen := map[string]bool{}
	for _, model := range []interface{}{&RiceReportSnapshot{}, &AmountReportSnapshot{}} {
		var ids []string
		if err := tx.Model(model).Distinct("school_id").Pluck("school_id", &ids).Error; err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen[id] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
