package api

import (
	"net/http"

	"shop-service/internal/apperr"
	"shop-service/internal/crud"
	"shop-service/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// prepareFunc adjusts a decoded document before it is created, e.g. to take a
// parent id from the path.
type prepareFunc[T any] func(c *gin.Context, doc *T) error

// scopeFunc narrows a list to what the caller may see.
type scopeFunc func(c *gin.Context) (bson.M, error)

func createOne[T any, P models.Entity[T]](res *crud.Resource[T, P], prepare prepareFunc[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var doc T
		raw, err := c.GetRawData()
		if err != nil {
			fail(c, apperr.Wrap(apperr.KindValidation, err, "Invalid request body"))
			return
		}
		if err := decodeDoc(raw, &doc); err != nil {
			fail(c, err)
			return
		}
		if prepare != nil {
			if err := prepare(c, &doc); err != nil {
				fail(c, err)
				return
			}
		}
		if err := res.Create(c.Request.Context(), &doc); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": &doc})
	}
}

func getOne[T any, P models.Entity[T]](res *crud.Resource[T, P]) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := res.Get(c.Request.Context(), c.Param("id"), true)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": doc})
	}
}

func updateOne[T any, P models.Entity[T]](res *crud.Resource[T, P]) gin.HandlerFunc {
	return func(c *gin.Context) {
		patch, err := c.GetRawData()
		if err != nil {
			fail(c, err)
			return
		}
		doc, err := res.Update(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": doc})
	}
}

func deleteOne[T any, P models.Entity[T]](res *crud.Resource[T, P]) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := res.Delete(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func getAll[T any, P models.Entity[T]](res *crud.Resource[T, P], scope scopeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		base := bson.M{}
		if scope != nil {
			var err error
			if base, err = scope(c); err != nil {
				fail(c, err)
				return
			}
		}
		result, err := res.List(c.Request.Context(), c.Request.URL.Query(), base)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// byParent scopes a nested list to the parent id in the path.
func byParent(field string) scopeFunc {
	return func(c *gin.Context) (bson.M, error) {
		id, err := crud.ParseID(c.Param("id"))
		if err != nil {
			return nil, err
		}
		return bson.M{field: id}, nil
	}
}
