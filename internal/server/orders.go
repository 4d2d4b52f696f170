package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/edusocial/edusocial/internal/order/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) orderForAccount(c *gin.Context) (*orderdomain.Order, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return nil, false
	}

	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	// Cross-account probing looks identical to a missing order.
	if order.BusinessAccountID != accountID(c) {
		AbortWithError(c, orderdomain.ErrNotFound)
		return nil, false
	}
	return order, true
}

func (s *Server) getOrder(c *gin.Context) {
	order, ok := s.orderForAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) listOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	orders, err := s.orderSvc.ListByAccount(c.Request.Context(), accountID(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) getInvoice(c *gin.Context) {
	order, ok := s.orderForAccount(c)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.GetByOrder(c.Request.Context(), order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) getInvoiceDocument(c *gin.Context) {
	order, ok := s.orderForAccount(c)
	if !ok {
		return
	}

	document, err := s.invoiceSvc.Render(c.Request.Context(), order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoice-`+order.ID.String()+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", document)
}
