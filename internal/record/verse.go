package record

import "fmt"

// KindVerse names verse records in configuration, buckets and schemas.
const KindVerse = "verse"

// Verse is a single scripture verse keyed by a string identifier.
type Verse struct {
	ID      string `json:"id,omitempty" yaml:"id"`
	Book    string `json:"book" yaml:"book"`
	Chapter int    `json:"chapter" yaml:"chapter"`
	Verse   int    `json:"verse" yaml:"verse"`
	Text    string `json:"text" yaml:"text"`
}

// Key implements store.Record.
func (v Verse) Key() string {
	return v.ID
}

// WithKey implements store.Record.
func (v Verse) WithKey(key string) Verse {
	v.ID = key
	return v
}

// Reference formats the verse as "Book chapter:verse".
func (v Verse) Reference() string {
	return fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.Verse)
}
