package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category описывает категорию одежды в каталоге
type Category string

const (
	CategoryTop    Category = "top"
	CategoryBottom Category = "bottom"
	CategoryDress  Category = "dress"
)

// Categories перечисляет категории в порядке обхода каталога.
var Categories = []Category{CategoryTop, CategoryBottom, CategoryDress}

// ParseCategory принимает как доменные значения (top), так и значения enum в БД (tops).
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top", "tops":
		return CategoryTop, nil
	case "bottom", "bottoms":
		return CategoryBottom, nil
	case "dress", "dresses":
		return CategoryDress, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Plural возвращает имя категории в том виде, в каком оно хранится в БД и в структуре каталогов.
func (c Category) Plural() string {
	if c == CategoryDress {
		return "dresses"
	}

	return string(c) + "s"
}

func (c Category) String() string {
	return string(c)
}

// CatalogItem описывает одну фотографию вещи из каталога
type CatalogItem struct {
	ID        int64
	Category  Category
	ImagePath string // относительный путь к фото, например data/clothes/tops/cloth/000001_top.jpg
	Caption   Caption
	CreatedAt time.Time
}

func NewCatalogItem(id int64, category Category, imagePath string, caption Caption) *CatalogItem {
	return &CatalogItem{
		ID:        id,
		Category:  category,
		ImagePath: imagePath,
		Caption:   caption,
	}
}

// Title возвращает человекочитаемое название вещи.
func (c *CatalogItem) Title() string {
	return c.Caption.Title()
}
