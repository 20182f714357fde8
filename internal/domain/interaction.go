package domain

import "time"

// HistoryLimit — сколько последних просмотров хранится на одного пользователя.
const HistoryLimit = 20

// Interaction описывает просмотр (клик) вещи пользователем
type Interaction struct {
	ID        int64
	UserID    int64
	ItemID    int64
	CreatedAt time.Time
}

func NewInteraction(userID int64, itemID int64) *Interaction {
	return &Interaction{
		UserID: userID,
		ItemID: itemID,
	}
}

// ItemCount — количество взаимодействий с вещью.
type ItemCount struct {
	ItemID int64
	Count  int64
}
