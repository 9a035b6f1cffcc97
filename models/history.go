package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	SchoolId      string    `gorm:"size:64;index;not null" json:"school_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	schoolId string,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {

	if schoolId == "" {
		return errors.New("school id is required")
	}

	// user comes from the request context; ops tools run as System
	actor := ActorFromContext(tx.Statement.Context)

	history := History{
		SchoolId:      schoolId,
		ActionType:    actionType,
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		UserId:        actor.Id,
		UserName:      actor.Name,
	}
	if before != nil {
		b, err := json.Marshal(before)
		if err != nil {
			return err
		}
		history.Before = string(b)
	}
	if after != nil {
		a, err := json.Marshal(after)
		if err != nil {
			return err
		}
		history.After = string(a)
	}
	return tx.Create(&history).Error
}

func SaveHistoryCreate(tx *gorm.DB, schoolId string, id int, referenceType string, obj interface{}, description string) error {
	return createHistory(tx, schoolId, "CREATE", id, referenceType, nil, obj, description)
}

func SaveHistoryUpdate(tx *gorm.DB, schoolId string, id int, referenceType string, before interface{}, after interface{}, description string) error {
	return createHistory(tx, schoolId, "UPDATE", id, referenceType, before, after, description)
}

func SaveHistoryDelete(tx *gorm.DB, schoolId string, id int, referenceType string, obj interface{}, description string) error {
	return createHistory(tx, schoolId, "DELETE", id, referenceType, obj, nil, description)
}

// GetHistories lists a school's audit rows newest first, optionally narrowed to one reference.
func GetHistories(tx *gorm.DB, schoolId string, referenceType string, referenceId int) ([]*History, error) {
	if schoolId == "" {
		return nil, errors.New("school id is required")
	}
	var results []*History
	q := tx.Where("school_id = ?", schoolId)
	if referenceType != "" {
		q = q.Where("reference_type = ?", referenceType)
	}
	if referenceId > 0 {
		q = q.Where("reference_id = ?", referenceId)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

