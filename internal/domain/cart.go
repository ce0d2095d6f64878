package domain

import "time"

type CartItem struct {
	ProductID   int64  `bson:"product_id" json:"product_id"`
	ProductName string `bson:"product_name" json:"product_name"`
	Quantity    int    `bson:"quantity" json:"quantity"`
	UnitPrice   int64  `bson:"unit_price" json:"unit_price"`
}

type Cart struct {
	CustomerToken string     `bson:"customer_token" json:"customer_token"`
	Items         []CartItem `bson:"items" json:"items"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
}

func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}
