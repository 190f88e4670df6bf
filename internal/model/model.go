package model

import "time"

// Статья в том виде, в котором она хранится в БД
type Article struct {
	ID int64
	// Нормализованный URL, уникален для всей коллекции
	URL   string
	Title string
	// Текст статьи без футеров и служебных маркеров
	BodyText string
	// Дата публикации в источнике. nil, если дату не удалось извлечь
	PublishedAt *time.Time
	// Дата взята из отдельного элемента страницы, а не из текста статьи. В БД не хранится
	PublishedAtFromMarkup bool
	// Имя источника: BlockBeats, Jinse, PANews...
	Source string
	// Ключевые слова из конфига, найденные в заголовке и тексте, в порядке конфига
	MatchedKeywords []string
	// Оценка релевантности от LLM, если решение принимала модель
	RelevanceScore *float64
	// Время, когда статью забрали. Проставляется только оркестратором
	ScrapedAt time.Time
	// Время вставки в БД
	CreatedAt time.Time
}

// Результат вставки статьи
type InsertOutcome int

const (
	Inserted InsertOutcome = iota + 1
	AlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}
