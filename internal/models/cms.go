package models

// CmsPage is a free-form content page addressed by slug.
type CmsPage struct {
	Base     `bson:",inline"`
	Title    string      `bson:"title" json:"title" binding:"required"`
	Slug     string      `bson:"slug" json:"slug" binding:"required"`
	Content  interface{} `bson:"content" json:"content" binding:"required"`
	IsActive bool        `bson:"isActive" json:"isActive"`
}
