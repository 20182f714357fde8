package converter

type ItemInfoRedisModel struct {
	ID        int64  `json:"id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	ImagePath string `json:"image_path"`
}
