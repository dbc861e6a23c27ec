package store

import (
	"strings"

	"shop-service/internal/auth"
	"shop-service/internal/models"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HashPassword replaces a plain password with its bcrypt hash. Values that
// already are hashes pass through untouched.
func HashPassword(u *models.User) error {
	if u.Password == "" || auth.IsHashed(u.Password) {
		return nil
	}
	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hash
	return nil
}

// ActivateUser makes new accounts active.
func ActivateUser(u *models.User) {
	u.Active = true
}

func NormalizeUser(u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	u.Slug = slug.Make(u.Name)
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Wishlist == nil {
		u.Wishlist = []primitive.ObjectID{}
	}
	if u.Addresses == nil {
		u.Addresses = []models.Address{}
	}
	return nil
}

func ProductSlug(p *models.Product) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = slug.Make(p.Title)
	p.Barcode = strings.TrimSpace(p.Barcode)
	return nil
}

func CategorySlug(c *models.Category) error {
	c.Slug = slug.Make(c.Name)
	return nil
}

func SubCategorySlug(s *models.SubCategory) error {
	s.Name = strings.TrimSpace(s.Name)
	s.Slug = slug.Make(s.Name)
	return nil
}

func BrandSlug(b *models.Brand) error {
	b.Slug = slug.Make(b.Name)
	return nil
}

// UpperCouponName stores coupon names upper-cased so lookups are exact.
func UpperCouponName(c *models.Coupon) error {
	c.Name = strings.ToUpper(strings.TrimSpace(c.Name))
	return nil
}

func LowerPageSlug(p *models.CmsPage) error {
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	return nil
}

// BrandImageURL returns hooks that expose brand images as absolute URLs on
// read and store only the file name.
func BrandImageURL(baseURL string) (before func(*models.Brand) error, after func(*models.Brand)) {
	prefix := strings.TrimRight(baseURL, "/") + "/brands/"
	before = func(b *models.Brand) error {
		b.Image = strings.TrimPrefix(b.Image, prefix)
		return nil
	}
	after = func(b *models.Brand) {
		if b.Image != "" && !strings.HasPrefix(b.Image, prefix) {
			b.Image = prefix + b.Image
		}
	}
	return before, after
}
