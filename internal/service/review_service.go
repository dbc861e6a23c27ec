package service

import (
	"context"
	"fmt"

	"shop-service/internal/apperr"
	"shop-service/internal/crud"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ReviewService enforces review ownership and keeps the product's rating
// summary in step with its reviews.
type ReviewService struct {
	reviews  ReviewStore
	products ProductReader
	ratings  RatingWriter
	logger   *zap.Logger
}

func NewReviewService(reviews ReviewStore, products ProductReader, ratings RatingWriter) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		ratings:  ratings,
		logger:   util.Named("reviews"),
	}
}

type ReviewRequest struct {
	Title   *string  `json:"title"`
	Ratings *float64 `json:"ratings"`
}

func (s *ReviewService) Create(ctx context.Context, actor *models.User, rawProductID string, req *ReviewRequest) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Create")
	defer span.End()

	productID, err := primitive.ObjectIDFromHex(rawProductID)
	if err != nil {
		return nil, apperr.Validation("Invalid product id format")
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	review := &models.Review{User: actor.ID, Product: productID}
	applyReview(review, req)
	if err := crud.Validate(review); err != nil {
		return nil, err
	}

	exists, err := s.reviews.ExistsFor(ctx, actor.ID, productID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("You already created a review before")
	}
	if err := s.reviews.Insert(ctx, review); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if err := s.recompute(ctx, productID); err != nil {
		return nil, err
	}
	return review, nil
}

// Update lets only the author edit a review.
func (s *ReviewService) Update(ctx context.Context, actor *models.User, rawID string, req *ReviewRequest) (*models.Review, error) {
	review, err := s.load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if review.User != actor.ID {
		return nil, apperr.Forbidden("You are not allowed to perform this action")
	}

	applyReview(review, req)
	if err := crud.Validate(review); err != nil {
		return nil, err
	}
	if err := s.reviews.Replace(ctx, review); err != nil {
		return nil, err
	}
	if err := s.recompute(ctx, review.Product); err != nil {
		return nil, err
	}
	return review, nil
}

// Delete is open to the author and to admins and managers.
func (s *ReviewService) Delete(ctx context.Context, actor *models.User, rawID string) error {
	review, err := s.load(ctx, rawID)
	if err != nil {
		return err
	}
	if review.User != actor.ID && !isStaff(actor) {
		return apperr.Forbidden("You are not allowed to perform this action")
	}
	if err := s.reviews.DeleteByID(ctx, review.ID); err != nil {
		return err
	}
	return s.recompute(ctx, review.Product)
}

func (s *ReviewService) load(ctx context.Context, rawID string) (*models.Review, error) {
	id, err := crud.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	return s.reviews.FindByID(ctx, id)
}

func applyReview(r *models.Review, req *ReviewRequest) {
	if req.Title != nil {
		r.Title = *req.Title
	}
	if req.Ratings != nil {
		r.Ratings = *req.Ratings
	}
}

func (s *ReviewService) recompute(ctx context.Context, productID primitive.ObjectID) error {
	avg, count, err := s.reviews.Stats(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.ratings.SetRatings(ctx, productID, avg, count); err != nil {
		return fmt.Errorf("failed to update product ratings: %w", err)
	}
	s.logger.Debug("Ratings recomputed",
		zap.String("product_id", productID.Hex()),
		zap.Float64("average", avg),
		zap.Int("count", count))
	return nil
}
