package api

import (
	"net/http"

	"shop-service/internal/auth"
	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
)

const csrfCookie = "XSRF-TOKEN"

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyResetCodeRequest struct {
	ResetCode string `json:"resetCode" binding:"required"`
}

type wishlistRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

func (h *Handler) accountRoutes(v1 *gin.RouterGroup) {
	authLimit := rateLimit(h.limiter, "auth", h.cfg.Auth.RateLimit, h.cfg.Auth.RateLimitSpan)

	authGroup := v1.Group("/auth", authLimit)
	{
		authGroup.POST("/signup", h.signup)
		authGroup.POST("/login", h.login)
		authGroup.POST("/forgotPassword", h.forgotPassword)
		authGroup.POST("/verifyResetCode", h.verifyResetCode)
		authGroup.PUT("/resetPassword", h.resetPassword)
	}

	users := v1.Group("/users")
	{
		users.PUT("/changeMyPassword", h.protect(true), h.changeMyPassword)
		users.POST("/recoverMe", h.protect(true), h.recoverMe)

		me := users.Group("", h.protect(false))
		me.GET("/getMe", h.getMe)
		me.PUT("/updateMe", h.updateMe)
		me.DELETE("/deleteMe", h.deleteMe)

		admin := users.Group("", h.protect(false), allowedTo(staff...))
		admin.GET("", getAll(h.resources.Users, nil))
		admin.POST("", createOne(h.resources.Users, newAccount))
		admin.GET("/:id", getOne(h.resources.Users))
		admin.PUT("/:id", h.adminUpdateUser)
		admin.PUT("/changePassword/:id", h.changeUserPassword)
		admin.DELETE("/:id", allowedTo(models.RoleAdmin), deleteOne(h.resources.Users))
	}

	wishlist := v1.Group("/wishlist", h.protect(false), allowedTo(models.RoleUser))
	{
		wishlist.POST("", h.addToWishlist)
		wishlist.DELETE("/:productId", h.removeFromWishlist)
		wishlist.GET("", h.getWishlist)
	}

	addresses := v1.Group("/addresses", h.protect(false), allowedTo(models.RoleUser))
	{
		addresses.POST("", h.addAddress)
		addresses.DELETE("/:addressId", h.removeAddress)
		addresses.GET("", h.getAddresses)
	}
}

// setCSRFCookie issues the double-submit token. Scripts must read it, so it
// is not HttpOnly.
func (h *Handler) setCSRFCookie(c *gin.Context) error {
	token, err := auth.NewCSRFToken()
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(csrfCookie, token, int(h.cfg.Auth.JWTExpiresIn.Seconds()), "/", "", h.cfg.IsProduction(), false)
	return nil
}

func (h *Handler) signup(c *gin.Context) {
	var req service.SignupRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	user, token, err := h.services.Auth.Signup(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.setCSRFCookie(c); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": user, "token": token})
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	user, token, err := h.services.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.setCSRFCookie(c); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user, "token": token})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	if err := h.services.Auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Success", "message": "Reset code sent to email"})
}

func (h *Handler) verifyResetCode(c *gin.Context) {
	var req verifyResetCodeRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	if err := h.services.Auth.VerifyResetCode(c.Request.Context(), req.ResetCode); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Success"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req service.ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	token, err := h.services.Auth.ResetPassword(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) getMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": actor(c)})
}

func (h *Handler) changeMyPassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	user, token, err := h.services.Users.ChangeMyPassword(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user, "token": token})
}

func (h *Handler) updateMe(c *gin.Context) {
	var req service.UpdateMeRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	user, err := h.services.Users.UpdateMe(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (h *Handler) deleteMe(c *gin.Context) {
	if err := h.services.Users.SetActive(c.Request.Context(), actor(c), false); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) recoverMe(c *gin.Context) {
	if err := h.services.Users.SetActive(c.Request.Context(), actor(c), true); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Your account has been reactivated"})
}

func (h *Handler) adminUpdateUser(c *gin.Context) {
	var req service.AdminUpdateUserRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	user, err := h.services.Users.AdminUpdate(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (h *Handler) changeUserPassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	user, err := h.services.Users.ChangePassword(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (h *Handler) addToWishlist(c *gin.Context) {
	var req wishlistRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	ids, err := h.services.Wishlist.Add(c.Request.Context(), actor(c), req.ProductID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Product added successfully to your wishlist.",
		"data":    ids,
	})
}

func (h *Handler) removeFromWishlist(c *gin.Context) {
	ids, err := h.services.Wishlist.Remove(c.Request.Context(), actor(c), c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Product removed successfully from your wishlist.",
		"data":    ids,
	})
}

func (h *Handler) getWishlist(c *gin.Context) {
	products, err := h.services.Wishlist.List(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "result": len(products), "data": products})
}

func (h *Handler) addAddress(c *gin.Context) {
	var req service.AddressRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	addrs, err := h.services.Addresses.Add(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Address added successfully.",
		"data":    addrs,
	})
}

func (h *Handler) removeAddress(c *gin.Context) {
	addrs, err := h.services.Addresses.Remove(c.Request.Context(), actor(c), c.Param("addressId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Address removed successfully.",
		"data":    addrs,
	})
}

func (h *Handler) getAddresses(c *gin.Context) {
	addrs, err := h.services.Addresses.List(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "result": len(addrs), "data": addrs})
}

// newAccount activates accounts created by staff.
func newAccount(_ *gin.Context, u *models.User) error {
	u.Active = true
	return nil
}
