package model

// MerchantProfile is the business account that owns service items.
type MerchantProfile struct {
	ID     uint64 // merchant_profiles.id
	UserID uint64 // merchant_profiles.user_id, the login that manages the profile
	Name   string // merchant_profiles.name
}

// ServiceItem is an offering in a merchant's catalog.
type ServiceItem struct {
	ID         uint64 // service_items.id
	MerchantID uint64 // service_items.merchant_id
	Name       string // service_items.name
}

// Task is a schedulable unit of a service item. Slots are published per task.
type Task struct {
	ID            uint64 // tasks.id
	ServiceItemID uint64 // tasks.service_item_id
	Title         string // tasks.title
}
