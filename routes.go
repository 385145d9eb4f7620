package main

import (
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/models"
	"bitbucket.org/mmdatafocus/fees_backend/models/reports"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// respondError maps the model layer's error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case utils.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case utils.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func bindAndValidate(c *gin.Context, input interface{}) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := validate.Struct(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

func requireTenant(c *gin.Context) bool {
	tenantId, ok := utils.GetTenantIdFromContext(c.Request.Context())
	if !ok || tenantId <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

func pathId(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) *int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
		return nil, false
	}
	return &t, true
}

func registerFeeRoutes(r *gin.Engine) {
	fees := r.Group("/fees")

	fees.POST("/categories", createFeeCategoryHandler)
	fees.GET("/categories", listFeeCategoriesHandler)
	fees.PUT("/categories/:id", updateFeeCategoryHandler)
	fees.POST("/categories/:id/toggle", toggleFeeCategoryHandler)
	fees.DELETE("/categories/:id", deleteFeeCategoryHandler)

	fees.POST("/structures", createFeeStructureHandler)
	fees.GET("/structures", listFeeStructuresHandler)
	fees.GET("/structures/:id", getFeeStructureHandler)
	fees.DELETE("/structures/:id", deleteFeeStructureHandler)

	fees.POST("/assign", assignFeeHandler)
	fees.POST("/assign/bulk", bulkAssignFeeHandler)
	fees.GET("/student-fees", listStudentFeesHandler)
	fees.GET("/student-fees/:id", getStudentFeeHandler)
	fees.GET("/student-fees/:id/details", getStudentFeeDetailsHandler)
	fees.DELETE("/student-fees/:id", deleteStudentFeeHandler)

	fees.POST("/concessions", applyConcessionHandler)
	fees.POST("/concessions/bulk", bulkConcessionHandler)
	fees.DELETE("/concessions/:id", deactivateConcessionHandler)

	fees.POST("/fines", applyFineHandler)
	fees.POST("/fines/:id/waive", waiveFineHandler)
	fees.POST("/fines/auto-apply", autoApplyFinesHandler)

	fees.POST("/payments", processPaymentHandler)
	fees.GET("/receipts", listReceiptsHandler)
	fees.GET("/receipts/:id", getReceiptHandler)
	fees.DELETE("/receipts/:id", deleteReceiptHandler)

	fees.GET("/summary/daily", dailySummaryHandler)
	fees.GET("/summary/range", summaryRangeHandler)
	fees.POST("/summary/rebuild", rebuildSummaryHandler)

	rp := r.Group("/reports")
	rp.GET("/collection", collectionReportHandler)
	rp.GET("/collection/export", collectionReportExportHandler)
	rp.GET("/outstanding", outstandingReportHandler)
	rp.GET("/class-collection", classCollectionHandler)
	rp.GET("/defaulters", defaulterListHandler)
	rp.GET("/defaulters/export", defaulterListExportHandler)
}

func createFeeCategoryHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var input models.NewFeeCategory
	if !bindAndValidate(c, &input) {
		return
	}
	category, err := models.CreateFeeCategory(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func listFeeCategoriesHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	activeOnly := c.Query("active_only") == "true"
	categories, err := models.GetFeeCategories(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func updateFeeCategoryHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewFeeCategory
	if !bindAndValidate(c, &input) {
		return
	}
	category, err := models.UpdateFeeCategory(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func toggleFeeCategoryHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	category, err := models.ToggleFeeCategoryStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func deleteFeeCategoryHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteFeeCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func createFeeStructureHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var input models.NewFeeStructure
	if !bindAndValidate(c, &input) {
		return
	}
	structure, err := models.CreateFeeStructure(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, structure)
}

func listFeeStructuresHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	structures, err := models.GetFeeStructures(c.Request.Context(), queryInt(c, "session_id"), queryInt(c, "class_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, structures)
}

func getFeeStructureHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	structure, err := models.GetFeeStructure(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, structure)
}

func deleteFeeStructureHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteFeeStructure(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func assignFeeHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var input models.NewStudentFeeAssignment
	if !bindAndValidate(c, &input) {
		return
	}
	fee, err := models.AssignFeeToStudent(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fee)
}

type bulkAssignRequest struct {
	ClassId        int   `json:"class_id" validate:"required"`
	SessionId      int   `json:"session_id" validate:"required"`
	FeeStructureId int64 `json:"fee_structure_id" validate:"required"`
}

func bulkAssignFeeHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var req bulkAssignRequest
	if !bindAndValidate(c, &req) {
		return
	}
	count, err := models.BulkAssignFeesToClass(c.Request.Context(), req.ClassId, req.SessionId, req.FeeStructureId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned_count": count})
}

func listStudentFeesHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var status *models.FeeStatus
	if v := c.Query("status"); v != "" {
		parsed, err := models.ParseFeeStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &parsed
	}
	fees, err := models.GetStudentFees(c.Request.Context(), queryInt(c, "student_id"), queryInt(c, "session_id"), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fees)
}

func getStudentFeeHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	fee, err := models.GetStudentFee(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fee)
}

func getStudentFeeDetailsHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	details, err := models.GetStudentFeeDetails(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func deleteStudentFeeHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteStudentFee(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func applyConcessionHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var input models.NewConcession
	if !bindAndValidate(c, &input) {
		return
	}
	concession, err := models.ApplyConcession(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, concession)
}

func bulkConcessionHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var input models.BulkConcessionInput
	if !bindAndValidate(c, &input) {
		return
	}
	count, err := models.BulkApplyConcessionsByCategory(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied_count": count})
}

func deactivateConcessionHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeactivateConcession(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func applyFineHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var input models.NewFine
	if !bindAndValidate(c, &input) {
		return
	}
	fine, err := models.ApplyFine(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fine)
}

type waiveFineRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func waiveFineHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req waiveFineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := models.WaiveFine(c.Request.Context(), id, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func autoApplyFinesHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
	count, err := models.AutoApplyLateFines(c.Request.Context(), tenantId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fines_applied": count})
}

func processPaymentHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	var input models.NewPayment
	if !bindAndValidate(c, &input) {
		return
	}
	receipt, err := models.ProcessPayment(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func listReceiptsHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	from, ok := queryDate(c, "from_date")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to_date")
	if !ok {
		return
	}
	var studentFeeId *int64
	if v := c.Query("student_fee_id"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			studentFeeId = &n
		}
	}
	receipts, err := models.GetReceipts(c.Request.Context(), studentFeeId, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipts)
}

func getReceiptHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	receipt, err := models.GetReceipt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

type reverseReceiptRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func deleteReceiptHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req reverseReceiptRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := models.DeleteReceipt(c.Request.Context(), id, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func dailySummaryHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	day := time.Now().UTC()
	if date != nil {
		day = *date
	}
	summary, err := models.GetCollectionSummary(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func summaryRangeHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	from, ok := queryDate(c, "from_date")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to_date")
	if !ok {
		return
	}
	if from == nil || to == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_date and to_date are required"})
		return
	}
	summaries, err := models.GetCollectionSummaries(c.Request.Context(), *from, *to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func rebuildSummaryHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	day := time.Now().UTC()
	if date != nil {
		day = *date
	}
	summary, err := models.RebuildCollectionSummary(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func reportRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, ok := queryDate(c, "from_date")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := queryDate(c, "to_date")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if from == nil || to == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_date and to_date are required"})
		return time.Time{}, time.Time{}, false
	}
	return *from, *to, true
}

func collectionReportHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	from, to, ok := reportRange(c)
	if !ok {
		return
	}
	report, err := reports.GetCollectionReport(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func collectionReportExportHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	from, to, ok := reportRange(c)
	if !ok {
		return
	}
	if err := reports.ExportCollectionReportExcel(c.Request.Context(), c.Writer, from, to); err != nil {
		respondError(c, err)
	}
}

func requireSessionId(c *gin.Context) (int, bool) {
	sessionId := queryInt(c, "session_id")
	if sessionId == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return 0, false
	}
	return *sessionId, true
}

func outstandingReportHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	sessionId, ok := requireSessionId(c)
	if !ok {
		return
	}
	rows, err := reports.GetOutstandingReport(c.Request.Context(), sessionId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func classCollectionHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	sessionId, ok := requireSessionId(c)
	if !ok {
		return
	}
	rows, err := reports.GetClassWiseCollection(c.Request.Context(), sessionId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func defaulterListHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	sessionId, ok := requireSessionId(c)
	if !ok {
		return
	}
	minBalance := decimal.Zero
	if v := c.Query("min_balance"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil || parsed.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_balance"})
			return
		}
		minBalance = parsed
	}
	rows, err := reports.GetDefaulterList(c.Request.Context(), sessionId, minBalance)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func defaulterListExportHandler(c *gin.Context) {
	if !requireTenant(c) {
		return
	}
	sessionId, ok := requireSessionId(c)
	if !ok {
		return
	}
	if err := reports.ExportDefaulterListExcel(c.Request.Context(), c.Writer, sessionId); err != nil {
		respondError(c, err)
	}
}
