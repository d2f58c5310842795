package model

// CatalogItem is one title in the browsable catalog.
type CatalogItem struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Genre        string  `json:"genre"`
	Year         int     `json:"year"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Rating       float64 `json:"rating"`
}
