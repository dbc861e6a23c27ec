package api

import (
	"net/http"

	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

type updateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type applyCouponRequest struct {
	Coupon string `json:"coupon" binding:"required"`
}

func (h *Handler) orderRoutes(v1 *gin.RouterGroup) {
	cart := v1.Group("/carts", h.protect(false), allowedTo(models.RoleUser))
	{
		cart.POST("", h.addToCart)
		cart.GET("", h.getCart)
		cart.DELETE("", h.clearCart)
		cart.PUT("/applyCoupon", h.applyCoupon)
		cart.PUT("/:itemId", h.updateCartItem)
		cart.DELETE("/:itemId", h.removeCartItem)
	}

	orders := v1.Group("/orders", h.protect(false))
	{
		orders.GET("/checkout-session/:cartId", allowedTo(models.RoleUser), h.checkoutSession)
		orders.POST("/verify-payment", allowedTo(models.RoleUser), h.verifyPayment)
		orders.POST("/:cartId", allowedTo(models.RoleUser), h.createCashOrder)

		orders.GET("", allowedTo(models.RoleUser, models.RoleAdmin, models.RoleManager),
			getAll(h.resources.Orders, ownOrders))
		orders.GET("/:id", allowedTo(models.RoleUser, models.RoleAdmin, models.RoleManager), h.getOrder)
		orders.PUT("/:id/pay", allowedTo(staff...), h.markOrderPaid)
		orders.PUT("/:id/deliver", allowedTo(staff...), h.markOrderDelivered)
	}
}

// ownOrders limits plain users to their own orders.
func ownOrders(c *gin.Context) (bson.M, error) {
	u := actor(c)
	if u.Role == models.RoleUser {
		return bson.M{"user": u.ID}, nil
	}
	return bson.M{}, nil
}

func cartResponse(c *gin.Context, status int, cart *models.Cart) {
	c.JSON(status, gin.H{
		"status":         "success",
		"numOfCartItems": len(cart.CartItems),
		"data":           cart,
	})
}

func (h *Handler) addToCart(c *gin.Context) {
	var req service.AddToCartRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	cart, err := h.services.Cart.AddProduct(c.Request.Context(), actor(c).ID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	cartResponse(c, http.StatusOK, cart)
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.services.Cart.GetCart(c.Request.Context(), actor(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	cartResponse(c, http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.services.Cart.Clear(c.Request.Context(), actor(c).ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateQuantityRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	cart, err := h.services.Cart.UpdateItemQuantity(c.Request.Context(), actor(c).ID, c.Param("itemId"), req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	cartResponse(c, http.StatusOK, cart)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.services.Cart.RemoveItem(c.Request.Context(), actor(c).ID, c.Param("itemId"))
	if err != nil {
		fail(c, err)
		return
	}
	cartResponse(c, http.StatusOK, cart)
}

func (h *Handler) applyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	cart, err := h.services.Cart.ApplyCoupon(c.Request.Context(), actor(c).ID, req.Coupon)
	if err != nil {
		fail(c, err)
		return
	}
	cartResponse(c, http.StatusOK, cart)
}

func (h *Handler) createCashOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	order, err := h.services.Orders.CreateCashOrder(c.Request.Context(), actor(c), c.Param("cartId"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": order})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.services.Orders.GetOrder(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (h *Handler) markOrderPaid(c *gin.Context) {
	order, err := h.services.Orders.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": order})
}

func (h *Handler) markOrderDelivered(c *gin.Context) {
	order, err := h.services.Orders.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": order})
}

// checkoutSession takes the shipping address from the query string since the
// route is a GET.
func (h *Handler) checkoutSession(c *gin.Context) {
	addr := models.ShippingAddress{
		Details:    c.Query("details"),
		Phone:      c.Query("phone"),
		City:       c.Query("city"),
		PostalCode: c.Query("postalCode"),
	}
	session, err := h.services.Orders.CheckoutSession(c.Request.Context(), actor(c), c.Param("cartId"), addr)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "session": session})
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	order, err := h.services.Orders.VerifyPayment(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": order})
}
