package assets

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Categories maps a category key ("image") to the lowercased extensions it covers.
type Categories map[string][]string

// DefaultCategories returns the built-in category table.
func DefaultCategories() Categories {
	return Categories{
		"archive":  {"arc", "arj", "bz2", "gz", "hqx", "lha", "lzh", "rar", "sea", "sit", "tar", "tgz", "zip", "7z"},
		"audio":    {"aif", "aifc", "aiff", "apl", "au", "avr", "cda", "flac", "m4a", "mid", "midi", "mp3", "ogg", "ra", "ram", "rm", "snd", "wav", "wma"},
		"document": {"css", "csv", "doc", "docx", "htm", "html", "js", "json", "md", "odp", "ods", "odt", "pdf", "ppt", "pptx", "rtf", "txt", "xhtml", "xls", "xlsx", "xml"},
		"flash":    {"fla", "swf"},
		"image":    {"alpha", "als", "bmp", "cel", "gif", "ico", "icon", "jpeg", "jpg", "pcx", "png", "ps", "svg", "tif", "tiff", "webp"},
		"video":    {"asf", "avi", "flv", "ifo", "m1v", "m2v", "m4v", "mkv", "mov", "movie", "mp2", "mp4", "mpa", "mpe", "mpeg", "mpg", "ogv", "qt", "vob", "webm", "wmv"},
	}
}

// Extensions returns the extension set of a category, or nil when the key is
// unknown or blank.
func (c Categories) Extensions(key string) []string {
	return c[strings.ToLower(strings.TrimSpace(key))]
}

// Keys returns the category keys in sorted order, for the search form.
func (c Categories) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// LoadCategories reads a YAML document of the form
//
//	image: [jpg, png]
//	model: [obj, stl]
//
// and merges it over the defaults. A category listed with no extensions is removed.
func LoadCategories(path string) (Categories, error) {
	cats := DefaultCategories()
	if path == "" {
		return cats, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}

	var overrides map[string][]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse categories file: %w", err)
	}

	for key, exts := range overrides {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if len(exts) == 0 {
			delete(cats, key)
			continue
		}
		normalized := make([]string, 0, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext != "" {
				normalized = append(normalized, ext)
			}
		}
		cats[key] = normalized
	}
	return cats, nil
}
