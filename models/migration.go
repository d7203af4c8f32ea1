package models

import (
	"log"

	"github.com/pawnest/adoptions_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Shelter{}, &User{},
		&Pet{},
		&AdoptionApplication{}, &ArchivedRejection{}, &SchedulingGrant{},
		&History{},
		&AdoptionEventRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
