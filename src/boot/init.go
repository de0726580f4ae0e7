package boot

import (
	"log"
	"strm/src/common"
	"strm/src/db"
	"strm/src/lib"
	"strm/src/models"
	"time"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	database := db.GetDb()

	err := database.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.TicketStatus{},
		&models.Listing{},
		&models.TicketOwnershipTransfer{},
		&models.GateScan{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return database
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	id, err := lib.CreateCronJob(common.DelistEndedEvents, 10*time.Minute)
	if err != nil {
		log.Printf("Error scheduling delist sweep: %s\n", err.Error())
		return
	}
	log.Printf("Scheduled delist sweep: %s\n", *id)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}
