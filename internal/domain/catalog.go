package domain

import "time"

// Product represents a product in the catalog. CategoryID is optional; when
// set it references an existing category.
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	CategoryID *int64    `json:"categoryId"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Category represents a product category. Names are not unique.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
