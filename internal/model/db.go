package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}, &Field{}, &FieldAutosave{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&LinkAssociation{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Revision{}, &RevisionField{}, &RevisionLink{}); err != nil {
		return err
	}

	return nil
}
