package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/models"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
)

// Full round trip of the fee ledger: assignment, concession, partial and
// final payments, overpayment rejection, reversal and the daily summary.
func TestFeeLedgerRoundTrip(t *testing.T) {
	ctx := setupIntegration(t)

	structure := seedStructure(t, ctx, []models.NewFeeStructureDetail{
		{FeeCategoryId: seedCategory(t, ctx, "Tuition", "TUI"), Amount: dec("8000")},
		{FeeCategoryId: seedCategory(t, ctx, "Library", "LIB"), Amount: dec("2000")},
	})

	fee, err := models.AssignFeeToStudent(ctx, &models.NewStudentFeeAssignment{
		StudentId:      seededStudentId,
		SessionId:      seededSessionId,
		FeeStructureId: structure.ID,
	})
	if err != nil {
		t.Fatalf("AssignFeeToStudent: %v", err)
	}
	if !fee.TotalAmount.Equal(dec("10000")) {
		t.Fatalf("total_amount = %s, want 10000", fee.TotalAmount)
	}

	// assignment is idempotent
	again, err := models.AssignFeeToStudent(ctx, &models.NewStudentFeeAssignment{
		StudentId:      seededStudentId,
		SessionId:      seededSessionId,
		FeeStructureId: structure.ID,
	})
	if err != nil {
		t.Fatalf("AssignFeeToStudent(again): %v", err)
	}
	if again.ID != fee.ID {
		t.Fatalf("repeat assignment created a second row: %d != %d", again.ID, fee.ID)
	}

	// 20% scholarship: net drops to 8000
	if _, err := models.ApplyConcession(ctx, &models.NewConcession{
		StudentFeeId:    fee.ID,
		ConcessionType:  models.ConcessionTypeScholarship,
		ConcessionMode:  models.ConcessionModePercentage,
		ConcessionValue: dec("20"),
	}); err != nil {
		t.Fatalf("ApplyConcession: %v", err)
	}
	breakdown, err := models.CalculateTotals(ctx, fee.ID)
	if err != nil {
		t.Fatalf("CalculateTotals: %v", err)
	}
	if !breakdown.NetAmount.Equal(dec("8000")) {
		t.Fatalf("net after concession = %s, want 8000", breakdown.NetAmount)
	}

	// partial payment
	first, err := models.ProcessPayment(ctx, &models.NewPayment{
		StudentFeeId: fee.ID,
		Amount:       "5,000",
		PaymentMode:  models.PaymentModeCash,
	})
	if err != nil {
		t.Fatalf("ProcessPayment(first): %v", err)
	}
	if !regexp.MustCompile(`^RCP-\d{6}-\d{5,}$`).MatchString(first.ReceiptNumber) {
		t.Fatalf("receipt number %q does not match RCP-YYYYMM-NNNNN", first.ReceiptNumber)
	}
	breakdown, _ = models.CalculateTotals(ctx, fee.ID)
	if breakdown.Status != models.FeeStatusPartiallyPaid {
		t.Fatalf("status = %s, want Partially Paid", breakdown.Status)
	}
	if !breakdown.BalanceAmount.Equal(dec("3000")) {
		t.Fatalf("balance = %s, want 3000", breakdown.BalanceAmount)
	}

	// one paisa over the balance must be rejected
	if _, err := models.ProcessPayment(ctx, &models.NewPayment{
		StudentFeeId: fee.ID,
		Amount:       "3000.01",
		PaymentMode:  models.PaymentModeUPI,
	}); !utils.IsValidation(err) {
		t.Fatalf("overpayment should be a validation error, got %v", err)
	}

	// exact balance settles the fee
	second, err := models.ProcessPayment(ctx, &models.NewPayment{
		StudentFeeId: fee.ID,
		Amount:       "3000",
		PaymentMode:  models.PaymentModeUPI,
	})
	if err != nil {
		t.Fatalf("ProcessPayment(second): %v", err)
	}
	if second.SequenceNo != first.SequenceNo+1 {
		t.Fatalf("sequence did not advance: %d then %d", first.SequenceNo, second.SequenceNo)
	}
	breakdown, _ = models.CalculateTotals(ctx, fee.ID)
	if breakdown.Status != models.FeeStatusPaid || !breakdown.BalanceAmount.IsZero() {
		t.Fatalf("after settling: status=%s balance=%s", breakdown.Status, breakdown.BalanceAmount)
	}

	// settled fee refuses any further payment
	if _, err := models.ProcessPayment(ctx, &models.NewPayment{
		StudentFeeId: fee.ID,
		Amount:       "1",
		PaymentMode:  models.PaymentModeCash,
	}); !utils.IsValidation(err) {
		t.Fatalf("payment on settled fee should be a validation error, got %v", err)
	}

	// summary reflects both verified payments in their mode buckets
	summary, err := models.GetCollectionSummary(ctx, utils.Today())
	if err != nil {
		t.Fatalf("GetCollectionSummary: %v", err)
	}
	if !summary.TotalCollected.Equal(dec("8000")) || summary.TransactionCount != 2 {
		t.Fatalf("summary = %s/%d, want 8000/2", summary.TotalCollected, summary.TransactionCount)
	}
	if !summary.CashAmount.Equal(dec("5000")) || !summary.OnlineAmount.Equal(dec("3000")) {
		t.Fatalf("summary split cash=%s online=%s, want 5000/3000", summary.CashAmount, summary.OnlineAmount)
	}

	// reverse the second receipt: fee reopens, summary decrements
	if err := models.DeleteReceipt(ctx, second.ID, "entry error"); err != nil {
		t.Fatalf("DeleteReceipt: %v", err)
	}
	breakdown, _ = models.CalculateTotals(ctx, fee.ID)
	if breakdown.Status != models.FeeStatusPartiallyPaid || !breakdown.PaidAmount.Equal(dec("5000")) {
		t.Fatalf("after reversal: status=%s paid=%s, want Partially Paid/5000", breakdown.Status, breakdown.PaidAmount)
	}
	reversed, err := models.GetReceipt(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetReceipt(reversed): %v", err)
	}
	if reversed.Status != models.PaymentStatusReversed || reversed.ReversalReason != "entry error" {
		t.Fatalf("reversed receipt = %s/%q", reversed.Status, reversed.ReversalReason)
	}

	// a reversed receipt cannot be reversed twice
	if err := models.DeleteReceipt(ctx, second.ID, "again"); !utils.IsValidation(err) {
		t.Fatalf("double reversal should be a validation error, got %v", err)
	}

	summary, _ = models.GetCollectionSummary(ctx, utils.Today())
	if !summary.TotalCollected.Equal(dec("5000")) || summary.TransactionCount != 1 {
		t.Fatalf("summary after reversal = %s/%d, want 5000/1", summary.TotalCollected, summary.TransactionCount)
	}
}

// An unpaid fee past its due date resolves Overdue, and the automatic late
// fine applies exactly once per day.
func TestOverdueFeeAndAutoFineIdempotency(t *testing.T) {
	ctx := setupIntegration(t)
	t.Setenv("AUTO_FINE_PERCENTAGE", "2")

	structure := seedStructure(t, ctx, []models.NewFeeStructureDetail{
		{FeeCategoryId: seedCategory(t, ctx, "Tuition", "TUI"), Amount: dec("10000")},
	})

	fee, err := models.AssignFeeToStudent(ctx, &models.NewStudentFeeAssignment{
		StudentId:      seededStudentId,
		SessionId:      seededSessionId,
		FeeStructureId: structure.ID,
	})
	if err != nil {
		t.Fatalf("AssignFeeToStudent: %v", err)
	}

	// push the due date into the past
	db := config.GetDB()
	pastDue := utils.Today().AddDate(0, 0, -30)
	if err := db.Model(&models.StudentFee{}).Where("id = ?", fee.ID).Update("due_date", pastDue).Error; err != nil {
		t.Fatalf("set past due date: %v", err)
	}

	breakdown, err := models.CalculateTotals(ctx, fee.ID)
	if err != nil {
		t.Fatalf("CalculateTotals: %v", err)
	}
	if breakdown.Status != models.FeeStatusOverdue {
		t.Fatalf("status = %s, want Overdue", breakdown.Status)
	}

	tenantId, _ := utils.GetTenantIdFromContext(ctx)
	count, err := models.AutoApplyLateFines(ctx, tenantId)
	if err != nil {
		t.Fatalf("AutoApplyLateFines: %v", err)
	}
	if count != 1 {
		t.Fatalf("first sweep applied %d fines, want 1", count)
	}

	// 2% of the 10000 balance
	breakdown, _ = models.CalculateTotals(ctx, fee.ID)
	if !breakdown.FineAmount.Equal(dec("200")) {
		t.Fatalf("fine = %s, want 200", breakdown.FineAmount)
	}
	if !breakdown.NetAmount.Equal(dec("10200")) {
		t.Fatalf("net = %s, want 10200", breakdown.NetAmount)
	}

	// same-day rerun is a no-op
	count, err = models.AutoApplyLateFines(ctx, tenantId)
	if err != nil {
		t.Fatalf("AutoApplyLateFines(rerun): %v", err)
	}
	if count != 0 {
		t.Fatalf("rerun applied %d fines, want 0", count)
	}

	// waiving the fine restores the original net
	var fine models.FeeFine
	if err := db.Where("student_fee_id = ?", fee.ID).First(&fine).Error; err != nil {
		t.Fatalf("fetch fine: %v", err)
	}
	if err := models.WaiveFine(ctx, fine.ID, "first offence"); err != nil {
		t.Fatalf("WaiveFine: %v", err)
	}
	breakdown, _ = models.CalculateTotals(ctx, fee.ID)
	if !breakdown.FineAmount.IsZero() || !breakdown.NetAmount.Equal(dec("10000")) {
		t.Fatalf("after waive: fine=%s net=%s", breakdown.FineAmount, breakdown.NetAmount)
	}
}

// Payments walk a three-installment schedule oldest first and reversals
// unwind it newest first.
func TestInstallmentAllocationRoundTrip(t *testing.T) {
	ctx := setupIntegration(t)

	tuition := seedCategory(t, ctx, "Tuition", "TUI")
	due := func(m time.Month) *time.Time {
		d := time.Date(2026, m, 10, 0, 0, 0, 0, time.UTC)
		return &d
	}
	structure := seedStructure(t, ctx, []models.NewFeeStructureDetail{
		{FeeCategoryId: tuition, Amount: dec("3000"), InstallmentNumber: 1, DueDate: due(time.April)},
		{FeeCategoryId: tuition, Amount: dec("3000"), InstallmentNumber: 2, DueDate: due(time.July)},
		{FeeCategoryId: tuition, Amount: dec("4000"), InstallmentNumber: 3, DueDate: due(time.October)},
	})

	fee, err := models.AssignFeeToStudent(ctx, &models.NewStudentFeeAssignment{
		StudentId:      seededStudentId,
		SessionId:      seededSessionId,
		FeeStructureId: structure.ID,
	})
	if err != nil {
		t.Fatalf("AssignFeeToStudent: %v", err)
	}

	details, err := models.GetStudentFeeDetails(ctx, fee.ID)
	if err != nil {
		t.Fatalf("GetStudentFeeDetails: %v", err)
	}
	if len(details.Installments) != 3 {
		t.Fatalf("got %d installments, want 3", len(details.Installments))
	}

	receipt, err := models.ProcessPayment(ctx, &models.NewPayment{
		StudentFeeId: fee.ID,
		Amount:       "5000",
		PaymentMode:  models.PaymentModeCash,
	})
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}

	details, _ = models.GetStudentFeeDetails(ctx, fee.ID)
	if !details.Installments[0].PaidAmount.Equal(dec("3000")) || details.Installments[0].Status != models.InstallmentStatusPaid {
		t.Fatalf("installment 1 = %s/%s", details.Installments[0].PaidAmount, details.Installments[0].Status)
	}
	if !details.Installments[1].PaidAmount.Equal(dec("2000")) {
		t.Fatalf("installment 2 = %s, want 2000", details.Installments[1].PaidAmount)
	}
	if !details.Installments[2].PaidAmount.IsZero() {
		t.Fatalf("installment 3 = %s, want 0", details.Installments[2].PaidAmount)
	}

	if err := models.DeleteReceipt(ctx, receipt.ID, "wrong student"); err != nil {
		t.Fatalf("DeleteReceipt: %v", err)
	}
	details, _ = models.GetStudentFeeDetails(ctx, fee.ID)
	for i, inst := range details.Installments {
		if !inst.PaidAmount.IsZero() {
			t.Fatalf("installment %d paid = %s after reversal, want 0", i+1, inst.PaidAmount)
		}
	}
}

const (
	seededTenantId  = 1
	seededSessionId = 1
	seededClassId   = 1
	seededStudentId = 1
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// setupIntegration starts throwaway MySQL and redis containers, connects the
// config globals, migrates the schema and seeds one tenant with a session,
// class and student. Returns a context carrying the tenant and user.
func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "fees_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	db := config.GetDB()
	seed := []interface{}{
		&models.Tenant{ID: seededTenantId, Name: "Sunrise Public School", Slug: "sunrise", IsActive: true},
		&models.AcademicSession{ID: seededSessionId, TenantId: seededTenantId, Name: "2026-27",
			StartDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC), IsCurrent: true},
		&models.Class{ID: seededClassId, TenantId: seededTenantId, ClassName: "Class 5", Section: "A"},
		&models.Student{ID: seededStudentId, TenantId: seededTenantId, ClassId: seededClassId,
			FullName: "Asha Verma", AdmissionNumber: "ADM-001", Status: models.StudentStatusActive},
	}
	for _, row := range seed {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}

	ctx := context.Background()
	ctx = utils.SetTenantIdInContext(ctx, seededTenantId)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func seedCategory(t *testing.T, ctx context.Context, name, code string) int64 {
	t.Helper()
	category, err := models.CreateFeeCategory(ctx, &models.NewFeeCategory{
		CategoryName: name,
		CategoryCode: code,
	})
	if err != nil {
		t.Fatalf("CreateFeeCategory(%s): %v", code, err)
	}
	return category.ID
}

func seedStructure(t *testing.T, ctx context.Context, details []models.NewFeeStructureDetail) *models.FeeStructure {
	t.Helper()
	structure, err := models.CreateFeeStructure(ctx, &models.NewFeeStructure{
		SessionId:     seededSessionId,
		ClassId:       seededClassId,
		StructureName: "Annual Fees",
		ValidFrom:     time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Details:       details,
	})
	if err != nil {
		t.Fatalf("CreateFeeStructure: %v", err)
	}
	return structure
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("fees-test-redis-%d", time.Now().UnixNano())
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
	name := fmt.Sprintf("fees-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=fees_test",
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
