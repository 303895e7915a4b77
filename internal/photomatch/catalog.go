// Package photomatch picks the before/after photo that best illustrates a
// recommended treatment.
package photomatch

import (
	"bytes"
	_ "embed"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/medspa-portal/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is an ordered, indexed set of gallery photos. It is immutable and
// safe for concurrent use.
type Catalog struct {
	photos  []model.Photo
	indexed []indexedPhoto
}

type indexedPhoto struct {
	treatment  string
	category   string
	issues     []string
	matchWords wordSet
	storyWords wordSet
}

type catalogFile struct {
	Photos []model.Photo `yaml:"photos"`
}

// NewCatalog indexes photos, preserving their order.
func NewCatalog(photos []model.Photo) *Catalog {
	c := &Catalog{
		photos:  append([]model.Photo(nil), photos...),
		indexed: make([]indexedPhoto, len(photos)),
	}
	for i, p := range c.photos {
		ip := indexedPhoto{
			treatment:  normalize(p.Treatment),
			category:   normalize(p.Category),
			matchWords: newWordSet(append([]string{p.Treatment}, p.Issues...)...),
			storyWords: newWordSet(p.StoryTitle),
		}
		for _, is := range p.Issues {
			ip.issues = append(ip.issues, normalize(is))
		}
		c.indexed[i] = ip
	}
	return c
}

// ParseCatalog decodes a YAML catalog. Unknown keys, photos without an id or
// url, and duplicate ids are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f catalogFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, eris.Wrap(err, "photomatch: decode catalog")
	}

	seen := make(map[string]bool, len(f.Photos))
	for i, p := range f.Photos {
		if p.ID == "" || p.URL == "" {
			return nil, eris.Errorf("photomatch: photo %d: id and url are required", i)
		}
		if seen[p.ID] {
			return nil, eris.Errorf("photomatch: duplicate photo id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return NewCatalog(f.Photos), nil
}

// LoadCatalog reads a catalog from path, or the built-in gallery when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "photomatch: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// Photos returns a copy of the catalog in scan order.
func (c *Catalog) Photos() []model.Photo {
	return append([]model.Photo(nil), c.photos...)
}

// Len returns the number of photos.
func (c *Catalog) Len() int { return len(c.photos) }

// CategoryOf returns the category of the first photo whose treatment equals
// treatment, falling back to the first partial match.
func (c *Catalog) CategoryOf(treatment string) string {
	return c.categoryOf(normalize(treatment))
}

func (c *Catalog) categoryOf(t string) string {
	if t == "" {
		return ""
	}
	for _, ip := range c.indexed {
		if ip.treatment == t && ip.category != "" {
			return ip.category
		}
	}
	for _, ip := range c.indexed {
		if partialMatch(ip.treatment, t) && ip.category != "" {
			return ip.category
		}
	}
	return ""
}
