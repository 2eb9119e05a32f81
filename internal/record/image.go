package record

import (
	"bytes"
	"strconv"
)

// KindImage names image records in configuration, buckets and schemas.
const KindImage = "image"

// Image is a stored image: a title, the raw bytes and a MIME-ish type.
//
// The key is the decimal form of ID. A zero ID means the store assigns one.
type Image struct {
	ID    int64  `json:"id,omitempty" db:"id" yaml:"id"`
	Title string `json:"title" db:"title" yaml:"title"`
	Data  []byte `json:"data" db:"data" yaml:"-"`
	Type  string `json:"type" db:"type" yaml:"type"`
}

// Key implements store.Record.
func (i Image) Key() string {
	if i.ID == 0 {
		return ""
	}
	return strconv.FormatInt(i.ID, 10)
}

// WithKey implements store.Record. A key that is not a decimal integer
// leaves ID at zero.
func (i Image) WithKey(key string) Image {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		id = 0
	}
	i.ID = id
	return i
}

// Equal reports whether two images hold the same id and content.
func (i Image) Equal(o Image) bool {
	return i.ID == o.ID &&
		i.Title == o.Title &&
		i.Type == o.Type &&
		bytes.Equal(i.Data, o.Data)
}

// ImageData is an image that has not been stored yet.
type ImageData struct {
	Name     string
	Data     []byte
	FileType string
}

// Image converts the payload into an unkeyed Image.
func (d ImageData) Image() Image {
	return Image{
		Title: d.Name,
		Data:  d.Data,
		Type:  d.FileType,
	}
}
