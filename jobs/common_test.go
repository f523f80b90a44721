package jobs

import (
	"testing"

	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/plan"
	"github.com/probelab/uitester/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and job store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Job{})

	log := logger.NewTestLogger()
	store := NewMySQLStore(db, log)

	return db, store
}

func testRequest() RequestJSON {
	return RequestJSON(plan.Request{
		URL:        "https://example.com",
		TestIntent: "log in with valid credentials",
		Type:       plan.TestTypeLogin,
	})
}

func testPlan() PlanJSON {
	return PlanJSON(plan.Plan{
		Description: "login flow",
		Steps: []plan.Step{
			{Action: plan.ActionNavigate},
			{Action: plan.ActionType, Target: "#email", Value: "{email}"},
			{Action: plan.ActionClick, Target: "#submit"},
		},
	})
}
