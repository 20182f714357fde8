package converter

import "time"

// CatalogItemModel представляет запись таблицы clothing в PostgreSQL.
type CatalogItemModel struct {
	CID         int64     `db:"cid"`
	Category    string    `db:"category"`
	Caption     []byte    `db:"caption"`
	ClosetUsers int       `db:"closet_users"`
	ClothPath   string    `db:"cloth_path"`
	CreatedAt   time.Time `db:"created_at"`
}

// InteractionModel представляет запись таблицы history в PostgreSQL.
type InteractionModel struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	ClothingID int64     `db:"clothing_id"`
	CreatedAt  time.Time `db:"created_at"`
}
