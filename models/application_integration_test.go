package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/models"
	"github.com/pawnest/adoptions_backend/utils"
	"github.com/pawnest/adoptions_backend/workflow"
	"github.com/shopspring/decimal"
)

func setupIntegrationEnv(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "pawnest_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	models.MigrateTable()
}

func staffContext(shelterId int) context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Staff")
	ctx = utils.SetUsernameInContext(ctx, "staff@local")
	ctx = utils.SetUserRoleInContext(ctx, string(models.UserRoleShelterStaff))
	ctx = utils.SetShelterIdInContext(ctx, shelterId)
	return ctx
}

func applicantContext(userId int) context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, userId)
	ctx = utils.SetUserNameInContext(ctx, fmt.Sprintf("Applicant %d", userId))
	ctx = utils.SetUsernameInContext(ctx, fmt.Sprintf("applicant%d@local", userId))
	ctx = utils.SetUserRoleInContext(ctx, string(models.UserRoleApplicant))
	return ctx
}

func createTestShelterAndPet(t *testing.T, name string) (shelterId int, petId int) {
	t.Helper()
	shelter, err := models.CreateShelter(staffContext(0), &models.NewShelter{Name: "Test Shelter"})
	if err != nil {
		t.Fatalf("CreateShelter: %v", err)
	}
	pet, err := models.CreatePet(staffContext(shelter.ID), &models.NewPet{
		Name:        name,
		Species:     "Dog",
		Breed:       "Mixed",
		AgeMonths:   24,
		AdoptionFee: decimal.NewFromInt(120),
	})
	if err != nil {
		t.Fatalf("CreatePet: %v", err)
	}
	return shelter.ID, pet.ID
}

func validApplication(petId int) *models.NewApplication {
	return &models.NewApplication{
		PetId: petId,
		ApplicationData: models.ApplicationData{
			FullName:      "Jordan Smith",
			Email:         "jordan@example.com",
			Phone:         "+12025550123",
			Address:       "1 Main St, Springfield",
			HousingType:   "house",
			HasYard:       true,
			HouseholdSize: 2,
		},
		AgreedToTerms: true,
	}
}

// Scenario A: happy path, submit through approval.
func TestApplicationLifecycleApprovalPath(t *testing.T) {
	setupIntegrationEnv(t)

	shelterId, petId := createTestShelterAndPet(t, "Rex")
	staff := staffContext(shelterId)
	applicant := applicantContext(100)

	application, err := models.SubmitApplication(applicant, validApplication(petId))
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}
	if application.Status != models.ApplicationStatusSubmitted {
		t.Fatalf("status = %s, want Submitted", application.Status)
	}

	pet, err := models.GetPet(applicant, petId)
	if err != nil {
		t.Fatalf("GetPet: %v", err)
	}
	if pet.Availability != models.PetAvailabilityPending {
		t.Fatalf("pet availability = %s, want Pending", pet.Availability)
	}

	if _, err := models.MoveToReview(staff, application.ID); err != nil {
		t.Fatalf("MoveToReview: %v", err)
	}
	approved, err := models.ApproveApplication(staff, application.ID)
	if err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	if approved.Status != models.ApplicationStatusApproved {
		t.Fatalf("status = %s, want Approved", approved.Status)
	}
	if approved.DecidedAt == nil {
		t.Fatal("DecidedAt must be set on approval")
	}

	pet, _ = models.GetPet(staff, petId)
	if pet.Availability != models.PetAvailabilityAdopted {
		t.Fatalf("pet availability = %s, want Adopted", pet.Availability)
	}

	// the grant names exactly the approved applicant/pet pair
	grant, err := models.GetSchedulingGrant(staff, petId)
	if err != nil {
		t.Fatalf("GetSchedulingGrant: %v", err)
	}
	if grant.ApplicantId != 100 || grant.ApplicationId != application.ID {
		t.Fatalf("grant for applicant %d application %d, want 100/%d", grant.ApplicantId, grant.ApplicationId, application.ID)
	}

	// Scenario D: a second applicant sees active_by_other, and submit conflicts
	view, err := models.GetPetApplicationStatus(applicantContext(101), petId, 101)
	if err != nil {
		t.Fatalf("GetPetApplicationStatus: %v", err)
	}
	if !view.Disabled || view.Reason != models.StatusReasonActiveByOther {
		t.Fatalf("view = %+v, want disabled active_by_other", view)
	}
	_, err = models.SubmitApplication(applicantContext(101), validApplication(petId))
	if _, ok := utils.AsConflictError(err); !ok {
		t.Fatalf("submit on adopted pet: expected ConflictError, got %v", err)
	}
}

// Invariant: two concurrent submissions, exactly one wins and the loser gets
// active_by_other.
func TestConcurrentSubmissionsExactlyOneWins(t *testing.T) {
	setupIntegrationEnv(t)

	_, petId := createTestShelterAndPet(t, "Bella")

	type result struct {
		app *models.AdoptionApplication
		err error
	}
	results := make([]result, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			app, err := models.SubmitApplication(applicantContext(200+i), validApplication(petId))
			results[i] = result{app, err}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		if r.err == nil {
			winners++
			continue
		}
		ce, ok := utils.AsConflictError(r.err)
		if !ok {
			t.Fatalf("loser got %v, want ConflictError", r.err)
		}
		if ce.Reason != utils.ConflictReasonActiveByOther {
			t.Fatalf("loser reason = %s, want active_by_other", ce.Reason)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	// at most one live record for the pet
	db := config.GetDB()
	var count int64
	if err := db.Model(&models.AdoptionApplication{}).
		Where("pet_id = ? AND live_slot IS NOT NULL", petId).
		Count(&count).Error; err != nil {
		t.Fatalf("count live: %v", err)
	}
	if count != 1 {
		t.Fatalf("live records = %d, want 1", count)
	}
}

func TestResubmissionByOwnerReturnsOwnSubmitted(t *testing.T) {
	setupIntegrationEnv(t)

	_, petId := createTestShelterAndPet(t, "Milo")
	applicant := applicantContext(300)

	if _, err := models.SubmitApplication(applicant, validApplication(petId)); err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}

	_, err := models.SubmitApplication(applicant, validApplication(petId))
	ce, ok := utils.AsConflictError(err)
	if !ok {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Reason != utils.ConflictReasonOwnSubmitted {
		t.Fatalf("reason = %s, want own_submitted", ce.Reason)
	}

	view, err := models.GetPetApplicationStatus(applicant, petId, 300)
	if err != nil {
		t.Fatalf("GetPetApplicationStatus: %v", err)
	}
	if view.Disabled || view.Reason != models.StatusReasonOwnSubmitted || view.ActionText != "Withdraw" {
		t.Fatalf("view = %+v, want enabled own_submitted Withdraw", view)
	}
}

// Scenario B: rejection archives the application and the applicant may reapply.
func TestRejectionArchivalAndReapplication(t *testing.T) {
	setupIntegrationEnv(t)

	shelterId, petId := createTestShelterAndPet(t, "Luna")
	staff := staffContext(shelterId)
	applicant := applicantContext(400)

	application, err := models.SubmitApplication(applicant, validApplication(petId))
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}
	if _, err := models.MoveToReview(staff, application.ID); err != nil {
		t.Fatalf("MoveToReview: %v", err)
	}

	// rejection reason is mandatory
	_, err = models.RejectApplication(staff, application.ID, &models.RejectionInput{RejectionReason: "  "})
	if _, ok := utils.AsValidationError(err); !ok {
		t.Fatalf("empty reason: expected ValidationError, got %v", err)
	}

	notes := "yard too small for this breed"
	archived, err := models.RejectApplication(staff, application.ID, &models.RejectionInput{
		RejectionReason: "unsuitable housing",
		ShelterNotes:    &notes,
	})
	if err != nil {
		t.Fatalf("RejectApplication: %v", err)
	}
	if archived.RejectionReason != "unsuitable housing" {
		t.Fatalf("reason = %q", archived.RejectionReason)
	}
	if archived.ReviewedAt == nil {
		t.Fatal("archive must carry the review timestamp")
	}
	if archived.ApplicationData.FullName != "Jordan Smith" {
		t.Fatal("archive must carry the full application data")
	}

	// archival completeness: live row gone, pet available again
	db := config.GetDB()
	var count int64
	db.Model(&models.AdoptionApplication{}).Where("id = ?", application.ID).Count(&count)
	if count != 0 {
		t.Fatal("live record must be deleted after archival")
	}
	pet, _ := models.GetPet(staff, petId)
	if pet.Availability != models.PetAvailabilityAvailable {
		t.Fatalf("pet availability = %s, want Available", pet.Availability)
	}

	// retrying the rejection converges on the same archive row
	again, err := models.RejectApplication(staff, application.ID, &models.RejectionInput{RejectionReason: "unsuitable housing"})
	if err != nil {
		t.Fatalf("RejectApplication retry: %v", err)
	}
	if again.ID != archived.ID {
		t.Fatalf("retry returned archive %d, want %d", again.ID, archived.ID)
	}
	db.Model(&models.ArchivedRejection{}).Where("application_id = ?", application.ID).Count(&count)
	if count != 1 {
		t.Fatalf("archive rows = %d, want 1", count)
	}

	// a rejected application is terminal; withdrawing it is an invalid
	// transition, not a missing record
	_, err = models.WithdrawApplication(applicant, application.ID)
	te, ok := utils.AsInvalidTransitionError(err)
	if !ok {
		t.Fatalf("withdrawal after rejection: expected InvalidTransitionError, got %v", err)
	}
	if te.From != string(models.ApplicationStatusRejected) {
		t.Fatalf("transition from = %q, want Rejected", te.From)
	}

	// Scenario C tail: the rejected applicant sees own_rejected and may reapply
	view, err := models.GetPetApplicationStatus(applicant, petId, 400)
	if err != nil {
		t.Fatalf("GetPetApplicationStatus: %v", err)
	}
	if view.Disabled || view.Reason != models.StatusReasonOwnRejected {
		t.Fatalf("view = %+v, want enabled own_rejected", view)
	}
	if view.ActionText != "Select" {
		t.Fatalf("action = %q, want Select", view.ActionText)
	}
	if _, err := models.SubmitApplication(applicant, validApplication(petId)); err != nil {
		t.Fatalf("reapplication after rejection: %v", err)
	}
}

// Scenario C: withdrawal is applicant-owned and only while pending.
func TestWithdrawalBoundaries(t *testing.T) {
	setupIntegrationEnv(t)

	shelterId, petId := createTestShelterAndPet(t, "Daisy")
	staff := staffContext(shelterId)
	owner := applicantContext(500)

	application, err := models.SubmitApplication(owner, validApplication(petId))
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}

	// someone else cannot withdraw
	_, err = models.WithdrawApplication(applicantContext(501), application.ID)
	if _, ok := utils.AsInvalidTransitionError(err); !ok {
		t.Fatalf("non-owner withdrawal: expected InvalidTransitionError, got %v", err)
	}

	// withdrawal works from Review too
	if _, err := models.MoveToReview(staff, application.ID); err != nil {
		t.Fatalf("MoveToReview: %v", err)
	}
	withdrawn, err := models.WithdrawApplication(owner, application.ID)
	if err != nil {
		t.Fatalf("WithdrawApplication: %v", err)
	}
	if withdrawn.Status != models.ApplicationStatusWithdrawn || withdrawn.LiveSlot != nil {
		t.Fatalf("withdrawn record = %+v", withdrawn)
	}

	pet, _ := models.GetPet(owner, petId)
	if pet.Availability != models.PetAvailabilityAvailable {
		t.Fatalf("pet availability = %s, want Available", pet.Availability)
	}

	// audit row retained and visible in the applicant's history
	items, err := models.ListApplicationsForApplicant(owner)
	if err != nil {
		t.Fatalf("ListApplicationsForApplicant: %v", err)
	}
	found := false
	for _, item := range items {
		if item.ApplicationId == application.ID && item.Status == models.ApplicationStatusWithdrawn {
			found = true
		}
	}
	if !found {
		t.Fatal("withdrawn application missing from applicant history")
	}

	// a terminal record cannot be withdrawn again
	_, err = models.WithdrawApplication(owner, application.ID)
	if _, ok := utils.AsInvalidTransitionError(err); !ok {
		t.Fatalf("double withdrawal: expected InvalidTransitionError, got %v", err)
	}

	// approval cannot be withdrawn either
	app2, err := models.SubmitApplication(owner, validApplication(petId))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if _, err := models.ApproveApplication(staff, app2.ID); err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	_, err = models.WithdrawApplication(owner, app2.ID)
	if _, ok := utils.AsInvalidTransitionError(err); !ok {
		t.Fatalf("withdrawal after approval: expected InvalidTransitionError, got %v", err)
	}
}

// The reconciler converges the partial states a crash between archival steps
// can leave behind.
func TestReconcilerConvergesCrashStates(t *testing.T) {
	setupIntegrationEnv(t)
	db := config.GetDB()

	// crash state 1: the archive copy was written but the live row survived,
	// still holding the slot and keeping the pet Pending
	_, petId := createTestShelterAndPet(t, "Nala")
	applicant := applicantContext(700)
	app, err := models.SubmitApplication(applicant, validApplication(petId))
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}
	now := time.Now().UTC()
	if err := db.Exec("UPDATE adoption_applications SET status = ?, decided_at = ? WHERE id = ?",
		models.ApplicationStatusRejected, now, app.ID).Error; err != nil {
		t.Fatalf("force rejected status: %v", err)
	}
	archive := models.ArchivedRejection{
		ApplicationId:   app.ID,
		PetId:           petId,
		ApplicantId:     700,
		ShelterId:       app.ShelterId,
		ApplicationData: app.ApplicationData,
		AgreedToTerms:   true,
		SubmittedAt:     app.SubmittedAt,
		DecidedAt:       now,
		RejectionReason: "unsuitable housing",
	}
	if err := db.Create(&archive).Error; err != nil {
		t.Fatalf("create archive copy: %v", err)
	}

	// crash state 2: a Pending pet whose live record vanished
	_, petId2 := createTestShelterAndPet(t, "Simba")
	app2, err := models.SubmitApplication(applicantContext(701), validApplication(petId2))
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}
	if err := db.Exec("DELETE FROM adoption_applications WHERE id = ?", app2.ID).Error; err != nil {
		t.Fatalf("delete live row: %v", err)
	}

	workflow.NewArchivalReconciler(db, config.GetLogger()).Sweep(context.Background())

	var count int64
	db.Model(&models.AdoptionApplication{}).Where("id = ?", app.ID).Count(&count)
	if count != 0 {
		t.Fatal("rejected record with archive copy must be removed by the sweep")
	}
	pet, _ := models.GetPet(applicant, petId)
	if pet.Availability != models.PetAvailabilityAvailable {
		t.Fatalf("pet availability = %s, want Available", pet.Availability)
	}
	pet2, _ := models.GetPet(applicantContext(701), petId2)
	if pet2.Availability != models.PetAvailabilityAvailable {
		t.Fatalf("orphaned pet availability = %s, want Available", pet2.Availability)
	}

	// the freed slot is claimable again
	if _, err := models.SubmitApplication(applicantContext(702), validApplication(petId)); err != nil {
		t.Fatalf("submit after sweep: %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	setupIntegrationEnv(t)

	_, petId := createTestShelterAndPet(t, "Coco")
	applicant := applicantContext(600)

	input := validApplication(petId)
	input.AgreedToTerms = false
	_, err := models.SubmitApplication(applicant, input)
	if _, ok := utils.AsValidationError(err); !ok {
		t.Fatalf("agreedToTerms=false: expected ValidationError, got %v", err)
	}

	input = validApplication(petId)
	input.ApplicationData.Email = "not-an-email"
	_, err = models.SubmitApplication(applicant, input)
	if _, ok := utils.AsValidationError(err); !ok {
		t.Fatalf("bad email: expected ValidationError, got %v", err)
	}

	// validation failures leave no state behind
	db := config.GetDB()
	var count int64
	db.Model(&models.AdoptionApplication{}).Where("pet_id = ?", petId).Count(&count)
	if count != 0 {
		t.Fatalf("application rows after failed validation = %d, want 0", count)
	}
	pet, _ := models.GetPet(applicant, petId)
	if pet.Availability != models.PetAvailabilityAvailable {
		t.Fatalf("pet availability = %s, want Available", pet.Availability)
	}

	_, err = models.SubmitApplication(applicant, validApplication(999999))
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown pet: expected not found, got %v", err)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("adoptions-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("adoptions-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=pawnest_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
