package models

import (
	"time"

	"gorm.io/gorm"
)

// DailyAttendanceRecord is owned by the attendance subsystem; this service only reads it.
type DailyAttendanceRecord struct {
	ID            int       `gorm:"primary_key" json:"id"`
	SchoolId      string    `gorm:"size:64;not null;index:idx_attendance_school_date" json:"school_id"`
	Date          time.Time `gorm:"type:date;not null;index:idx_attendance_school_date" json:"date"`
	ServedPrimary int       `gorm:"not null;default:0" json:"served_primary"`
	ServedMiddle  int       `gorm:"not null;default:0" json:"served_middle"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DailyAttendanceRecord) TableName() string {
	return "daily_attendance_records"
}

func (r DailyAttendanceRecord) DateString() string {
	return r.Date.Format("2006-01-02")
}

// ListAttendanceForPeriod returns the period's records in ascending (date, id) order.
func ListAttendanceForPeriod(tx *gorm.DB, schoolId string, p Period) ([]DailyAttendanceRecord, error) {
	first, last := p.DateRange()
	var records []DailyAttendanceRecord
	err := tx.Where("school_id = ? AND date BETWEEN ? AND ?", schoolId, first, last).
		Order("date ASC").Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func CountAttendanceForPeriod(tx *gorm.DB, schoolId string, p Period) (int64, error) {
	first, last := p.DateRange()
	var count int64
	err := tx.Model(&DailyAttendanceRecord{}).
		Where("school_id = ? AND date BETWEEN ? AND ?", schoolId, first, last).
		Count(&count).Error
	return count, err
}

// AttendanceSchoolIds lists every school with at least one attendance record.
func AttendanceSchoolIds(tx *gorm.DB) ([]string, error) {
	var ids []string
	err := tx.Model(&DailyAttendanceRecord{}).Distinct("school_id").Order("school_id").Pluck("school_id", &ids).Error
	return ids, err
}

// FirstAttendancePeriod is the period of the school's earliest record.
// ok is false when the school has none.
func FirstAttendancePeriod(tx *gorm.DB, schoolId string) (p Period, ok bool, err error) {
	var first DailyAttendanceRecord
	err = tx.Where("school_id = ?", schoolId).Order("date ASC").Limit(1).Find(&first).Error
	if err != nil || first.ID == 0 {
		return Period{}, false, err
	}
	return PeriodOf(first.Date), true, nil
}
