package handler

import (
	"net/http"

	"opsstay/internal/middleware"
	"opsstay/internal/model"
	"opsstay/internal/service"
	"opsstay/pkg/apperr"
	"opsstay/pkg/pagination"
	"opsstay/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.POST("", middleware.RequireRole(model.RoleManager, model.RoleEditor), h.Submit)
		requests.GET("", middleware.RequireRole(model.RoleManager), h.List)
		requests.PUT("/:id/approve", middleware.RequireRole(model.RoleManager), h.Approve)
		requests.PUT("/:id/reject", middleware.RequireRole(model.RoleManager), h.Reject)
	}
}

// Submit files a pre-check request for manager review
// @Summary      Submit request
// @Description  Persists a pending pre-check request to be reviewed by a manager
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitRequestInput  true  "Request payload"
// @Success      201      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not resolved"))
		return
	}

	var input service.SubmitRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	req, err := h.requestService.Submit(c.Request.Context(), input, ident)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), response.Error(apperr.HTTPStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, req))
}

// List returns requests filtered by status, newest first
// @Summary      List requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "pending, approved or rejected"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.RequestFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	requests, total, err := h.requestService.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), response.Error(apperr.HTTPStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"requests": requests,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// Approve promotes a pending request into a durable record
// @Summary      Approve request
// @Description  Marks the request approved and materializes the pre-check record
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RecordResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/approve [put]
func (h *RequestHandler) Approve(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not resolved"))
		return
	}

	record, err := h.requestService.Approve(c.Request.Context(), c.Param("id"), ident)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), response.Error(apperr.HTTPStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}

// Reject finalizes a pending request with no record created
// @Summary      Reject request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/reject [put]
func (h *RequestHandler) Reject(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not resolved"))
		return
	}

	req, err := h.requestService.Reject(c.Request.Context(), c.Param("id"), ident)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), response.Error(apperr.HTTPStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}
