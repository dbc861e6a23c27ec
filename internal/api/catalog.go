package api

import (
	"net/http"

	"shop-service/internal/crud"
	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
)

var staff = []string{models.RoleAdmin, models.RoleManager}

func (h *Handler) catalogRoutes(v1 *gin.RouterGroup) {
	res := h.resources
	writers := []gin.HandlerFunc{h.protect(false), allowedTo(staff...)}
	admins := []gin.HandlerFunc{h.protect(false), allowedTo(models.RoleAdmin)}

	products := v1.Group("/products")
	{
		products.GET("", getAll(res.Products, nil))
		products.GET("/:id", getOne(res.Products))
		products.POST("", append(writers, createOne(res.Products, nil))...)
		products.PUT("/:id", append(writers, updateOne(res.Products))...)
		products.DELETE("/:id", append(admins, deleteOne(res.Products))...)

		products.GET("/:id/reviews", getAll(res.Reviews, byParent("product")))
		products.POST("/:id/reviews", h.protect(false), allowedTo(models.RoleUser), h.createReview)
	}

	categories := v1.Group("/categories")
	{
		categories.GET("", getAll(res.Categories, nil))
		categories.GET("/:id", getOne(res.Categories))
		categories.POST("", append(writers, createOne(res.Categories, nil))...)
		categories.PUT("/:id", append(writers, updateOne(res.Categories))...)
		categories.DELETE("/:id", append(admins, deleteOne(res.Categories))...)

		categories.GET("/:id/subcategories", getAll(res.SubCategories, byParent("category")))
		categories.POST("/:id/subcategories", append(writers, createOne(res.SubCategories, subCategoryParent))...)
	}

	subcategories := v1.Group("/subcategories")
	{
		subcategories.GET("", getAll(res.SubCategories, nil))
		subcategories.GET("/:id", getOne(res.SubCategories))
		subcategories.POST("", append(writers, createOne(res.SubCategories, nil))...)
		subcategories.PUT("/:id", append(writers, updateOne(res.SubCategories))...)
		subcategories.DELETE("/:id", append(admins, deleteOne(res.SubCategories))...)
	}

	brands := v1.Group("/brands")
	{
		brands.GET("", getAll(res.Brands, nil))
		brands.GET("/:id", getOne(res.Brands))
		brands.POST("", append(writers, createOne(res.Brands, nil))...)
		brands.PUT("/:id", append(writers, updateOne(res.Brands))...)
		brands.DELETE("/:id", append(admins, deleteOne(res.Brands))...)
	}

	coupons := v1.Group("/coupons", writers...)
	{
		coupons.GET("", getAll(res.Coupons, nil))
		coupons.GET("/:id", getOne(res.Coupons))
		coupons.POST("", createOne(res.Coupons, nil))
		coupons.PUT("/:id", updateOne(res.Coupons))
		coupons.DELETE("/:id", deleteOne(res.Coupons))
	}

	reviews := v1.Group("/reviews")
	{
		reviews.GET("", getAll(res.Reviews, nil))
		reviews.GET("/:id", getOne(res.Reviews))
		reviews.PUT("/:id", h.protect(false), allowedTo(models.RoleUser), h.updateReview)
		reviews.DELETE("/:id", h.protect(false), allowedTo(models.RoleUser, models.RoleAdmin, models.RoleManager), h.deleteReview)
	}
}

func subCategoryParent(c *gin.Context, doc *models.SubCategory) error {
	id, err := crud.ParseID(c.Param("id"))
	if err != nil {
		return err
	}
	doc.Category = id
	return nil
}

func (h *Handler) createReview(c *gin.Context) {
	var req service.ReviewRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	review, err := h.services.Reviews.Create(c.Request.Context(), actor(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": review})
}

func (h *Handler) updateReview(c *gin.Context) {
	var req service.ReviewRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	review, err := h.services.Reviews.Update(c.Request.Context(), actor(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": review})
}

func (h *Handler) deleteReview(c *gin.Context) {
	if err := h.services.Reviews.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
