package models

import "time"

type Product struct {
	ID          int64     `json:"id"`
	VendorID    int64     `json:"vendor_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	Image       string    `json:"image,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Populated on reads that join the owning vendor.
	Vendor *UserSummary `json:"vendor,omitempty"`
}
