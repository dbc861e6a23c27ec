package service

import (
	"context"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WishlistService keeps product ids on the user document.
type WishlistService struct {
	users    UserStore
	products ProductReader
}

func NewWishlistService(users UserStore, products ProductReader) *WishlistService {
	return &WishlistService{users: users, products: products}
}

// Add stores the product once; adding it again is a no-op.
func (s *WishlistService) Add(ctx context.Context, actor *models.User, rawProductID string) ([]primitive.ObjectID, error) {
	ctx, span := util.StartSpan(ctx, "WishlistService.Add")
	defer span.End()

	productID, err := primitive.ObjectIDFromHex(rawProductID)
	if err != nil {
		return nil, apperr.Validation("Invalid product id format")
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	user, err := s.users.AddToWishlist(ctx, actor.ID, productID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return user.Wishlist, nil
}

func (s *WishlistService) Remove(ctx context.Context, actor *models.User, rawProductID string) ([]primitive.ObjectID, error) {
	productID, err := primitive.ObjectIDFromHex(rawProductID)
	if err != nil {
		return nil, apperr.Validation("Invalid product id format")
	}
	user, err := s.users.RemoveFromWishlist(ctx, actor.ID, productID)
	if err != nil {
		return nil, err
	}
	return user.Wishlist, nil
}

// List returns the wishlist expanded to full products, in wishlist order.
// Products deleted since are skipped.
func (s *WishlistService) List(ctx context.Context, actor *models.User) ([]models.Product, error) {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	found, err := s.products.FindByIDs(ctx, user.Wishlist)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(user.Wishlist))
	for _, id := range user.Wishlist {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// AddressService manages the user's embedded address book.
type AddressService struct {
	users UserStore
}

func NewAddressService(users UserStore) *AddressService {
	return &AddressService{users: users}
}

type AddressRequest struct {
	Alias      string `json:"alias" binding:"required"`
	Details    string `json:"details"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

func (s *AddressService) Add(ctx context.Context, actor *models.User, req *AddressRequest) ([]models.Address, error) {
	addr := models.Address{
		ID:         primitive.NewObjectID(),
		Alias:      req.Alias,
		Details:    req.Details,
		Phone:      req.Phone,
		City:       req.City,
		PostalCode: req.PostalCode,
	}
	user, err := s.users.AddAddress(ctx, actor.ID, addr)
	if err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

func (s *AddressService) Remove(ctx context.Context, actor *models.User, rawAddressID string) ([]models.Address, error) {
	addressID, err := primitive.ObjectIDFromHex(rawAddressID)
	if err != nil {
		return nil, apperr.Validation("Invalid address id format")
	}
	user, err := s.users.RemoveAddress(ctx, actor.ID, addressID)
	if err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

func (s *AddressService) List(ctx context.Context, actor *models.User) ([]models.Address, error) {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return user.Addresses, nil
}
