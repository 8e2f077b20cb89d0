package handler

import (
	"net/http"
	"strconv"

	"opsstay/internal/middleware"
	"opsstay/internal/model"
	"opsstay/internal/service"
	"opsstay/pkg/apperr"
	"opsstay/pkg/response"

	"github.com/gin-gonic/gin"
)

type RecordHandler struct {
	recordService service.RecordService
}

func NewRecordHandler(recordService service.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

func (h *RecordHandler) RegisterRoutes(router *gin.RouterGroup) {
	records := router.Group("/api/records")
	{
		records.GET("/search", middleware.RequireRole(model.RoleManager, model.RoleEditor, model.RoleViewer), h.Search)
		records.GET("", middleware.RequireRole(model.RoleManager), h.List)
		records.POST("", middleware.RequireRole(model.RoleManager), h.Create)
		records.DELETE("/:id", middleware.RequireRole(model.RoleManager), h.Delete)
	}
}

// Search runs a guest pre-check query by free-text name
// @Summary      Guest pre-check search
// @Description  Resolves a free-text guest name to at most one active record
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  true  "Guest name"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/records/search [get]
func (h *RecordHandler) Search(c *gin.Context) {
	record, err := h.recordService.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), response.Error(apperr.HTTPStatus(err), err.Error()))
		return
	}

	if record == nil {
		c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"found": false}))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"found":  true,
		"record": record,
	}))
}

// Create adds a pre-check record directly, bypassing the request workflow
// @Summary      Create record
// @Description  Creates a guest pre-check record (manager only)
// @Tags         records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRecordInput  true  "Record payload"
// @Success      201      {object}  response.Response{data=service.RecordResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/records [post]
func (h *RecordHandler) Create(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not resolved"))
		return
	}

	var input service.CreateRecordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	record, err := h.recordService.CreateRecord(c.Request.Context(), input, ident)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), response.Error(apperr.HTTPStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, record))
}

// List returns recent records for the management screen
// @Summary      List records
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Max records (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/records [get]
func (h *RecordHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := h.recordService.ListRecords(c.Request.Context(), limit)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), response.Error(apperr.HTTPStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"records": records,
		"limit":   limit,
	}))
}

// Delete archives then removes a record
// @Summary      Delete record
// @Description  Writes a deletion-archive copy, then removes the record from the active set
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not resolved"))
		return
	}

	if err := h.recordService.DeleteRecord(c.Request.Context(), c.Param("id"), ident); err != nil {
		c.JSON(apperr.HTTPStatus(err), response.Error(apperr.HTTPStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Record deleted"))
}
