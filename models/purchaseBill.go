package models

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseBill is a vendor bill attached to an amount report snapshot. Bills
// live and die with their snapshot; regeneration deletes them.
type PurchaseBill struct {
	ID               int                `gorm:"primary_key" json:"id"`
	SchoolId         string             `gorm:"size:64;not null;index" json:"school_id"`
	AmountSnapshotId int                `gorm:"not null;index" json:"amount_snapshot_id"`
	Category         IngredientCategory `gorm:"size:20;not null" json:"category"`
	VendorName       string             `gorm:"size:255;not null" json:"vendor_name"`
	BillNumber       string             `gorm:"size:100" json:"bill_number"`
	BillDate         time.Time          `gorm:"type:date;not null" json:"bill_date"`
	Amount           decimal.Decimal    `gorm:"type:decimal(20,4);not null" json:"amount"`
	Notes            string             `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

type NewPurchaseBill struct {
	Category   IngredientCategory `json:"category" validate:"required,oneof=pulses vegetables oil salt fuel"`
	VendorName string             `json:"vendor_name" validate:"required,max=255"`
	BillNumber string             `json:"bill_number" validate:"max=100"`
	BillDate   time.Time          `json:"bill_date" validate:"required"`
	Amount     utils.Amount       `json:"amount"`
	Notes      string             `json:"notes"`
}

func AddPurchaseBill(tx *gorm.DB, snap *AmountReportSnapshot, input NewPurchaseBill) (*PurchaseBill, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: Amount failed gt", utils.ErrValidation)
	}
	bill := PurchaseBill{
		SchoolId:         snap.SchoolId,
		AmountSnapshotId: snap.ID,
		Category:         input.Category,
		VendorName:       input.VendorName,
		BillNumber:       input.BillNumber,
		BillDate:         input.BillDate,
		Amount:           utils.Round2(input.Amount.Decimal),
		Notes:            input.Notes,
	}
	if err := tx.Create(&bill).Error; err != nil {
		return nil, err
	}
	if err := SaveHistoryCreate(tx, snap.SchoolId, bill.ID, "purchase_bills", bill, "Purchase bill added for "+snap.Period().String()); err != nil {
		return nil, err
	}
	return &bill, nil
}

func deleteBillsForSnapshot(tx *gorm.DB, snap *AmountReportSnapshot) error {
	return tx.Where("school_id = ? AND amount_snapshot_id = ?", snap.SchoolId, snap.ID).Delete(&PurchaseBill{}).Error
}
