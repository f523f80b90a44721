package testutil

import (
	"testing"

	"gorm.io/gorm"
)

// CreateFixtures persists the given models, failing the test on the
// first error.
func CreateFixtures(t *testing.T, db *gorm.DB, models ...interface{}) {
	t.Helper()
	for _, model := range models {
		if err := db.Create(model).Error; err != nil {
			t.Fatalf("failed to create fixture %T: %v", model, err)
		}
	}
}
