package common

import (
	"log"
	"strm/src/db"
	"strm/src/models"
	"strm/src/types"
	"time"

	"gorm.io/gorm"
)

// DelistEndedEvents takes stale listings off the market once their event has
// ended. Runs on the scheduler; safe to run concurrently since both updates
// are guarded by the current state.
func DelistEndedEvents() {
	database := db.GetDb()
	err := database.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		ended := tx.Model(&models.Event{}).Select("id").Where("ends_at < ?", now)

		res := tx.Model(&models.TicketStatus{}).
			Where("is_listed = true AND event_id IN (?)", ended).
			Updates(map[string]any{"is_listed": false, "listed_by": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			log.Printf("Delisted %d tickets of ended events\n", res.RowsAffected)
		}

		if err := tx.Model(&models.Listing{}).
			Where("status = ? AND event_id IN (?)", types.LISTING_OPEN, ended).
			Update("status", types.LISTING_EXPIRED).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error while delisting tickets of ended events: %s\n", err.Error())
	}
}
