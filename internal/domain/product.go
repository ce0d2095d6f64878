package domain

import "time"

type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"` // minor currency units
	ImageURL    string `json:"image_url"`
	Category    string `json:"category"`
	InStock     bool   `json:"in_stock"`
	CreatedAt   time.Time
}

type BlogPost struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
