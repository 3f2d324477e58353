package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harborline-tours/service-payments/internal/application"
	"github.com/harborline-tours/service-payments/internal/auth"
	"github.com/harborline-tours/service-payments/internal/middleware"
	"github.com/harborline-tours/service-payments/internal/response"
)

// AdminHandler handles admin dashboard endpoints.
type AdminHandler struct {
	payments *application.PaymentService
	bookings *application.BookingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(payments *application.PaymentService, bookings *application.BookingService) *AdminHandler {
	return &AdminHandler{payments: payments, bookings: bookings}
}

// RegisterRoutes registers all admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/payments", h.ListPayments)
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/payments", h.GetRefundStats)
	}
}

// ListPayments handles GET /api/v1/admin/payments
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, limit := pagination(c)

	dtos, total, err := h.payments.ListAllPayments(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dtos, total, page, limit)
}

// ListBookings handles GET /api/v1/admin/bookings
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := pagination(c)

	dtos, total, err := h.bookings.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dtos, total, page, limit)
}

// GetRefundStats handles GET /api/v1/admin/stats/payments
func (h *AdminHandler) GetRefundStats(c *gin.Context) {
	dto, err := h.payments.GetRefundStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
