package prompt

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Category - категория контента.
type Category struct {
	Name  string `yaml:"name"`
	Story bool   `yaml:"story"`
}

// Catalog - справочник категорий и параметров промптов.
type Catalog struct {
	LinesPerMinute   int        `yaml:"lines_per_minute" env:"LINES_PER_MINUTE" env-default:"8"`
	IdeaCount        int        `yaml:"idea_count" env:"IDEA_COUNT" env-default:"6"`
	ShoppingCategory string     `yaml:"shopping_category" env:"SHOPPING_CATEGORY" env-default:"쇼핑 리뷰"`
	Categories       []Category `yaml:"categories"`
}

// DefaultCatalog возвращает встроенный справочник.
func DefaultCatalog() *Catalog {
	return &Catalog{
		LinesPerMinute:   8,
		IdeaCount:        6,
		ShoppingCategory: "쇼핑 리뷰",
		Categories: []Category{
			{Name: "썰 채널", Story: true},
			{Name: "북한 이슈", Story: true},
			{Name: "49금", Story: true},
			{Name: "야담", Story: true},
			{Name: "국뽕", Story: true},
			{Name: "브이로그"},
			{Name: "쇼핑 리뷰"},
		},
	}
}

// LoadCatalog читает справочник из YAML. Если файла нет, берется встроенный справочник
// с переопределениями из окружения.
func LoadCatalog(path string) (*Catalog, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			var c Catalog
			if err := cleanenv.ReadConfig(path, &c); err != nil {
				return nil, fmt.Errorf("read category catalog %s: %w", path, err)
			}
			return c.normalized(), nil
		}
	}

	c := DefaultCatalog()
	if err := cleanenv.ReadEnv(c); err != nil {
		return nil, fmt.Errorf("read category catalog env: %w", err)
	}
	return c.normalized(), nil
}

func (c *Catalog) normalized() *Catalog {
	if c.LinesPerMinute <= 0 {
		c.LinesPerMinute = 8
	}
	if c.IdeaCount <= 0 {
		c.IdeaCount = 6
	}
	return c
}

// IsStory сообщает, относится ли категория к историческим/сюжетным каналам.
func (c *Catalog) IsStory(name string) bool {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat.Story
		}
	}
	return false
}

// IsShopping сообщает, является ли категория обзором товаров.
func (c *Catalog) IsShopping(name string) bool {
	return name != "" && name == c.ShoppingCategory
}

// Names возвращает названия категорий в порядке справочника.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		names[i] = cat.Name
	}
	return names
}
