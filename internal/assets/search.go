package assets

import (
	"net/url"
	"strings"
)

// SearchParams is the request-scoped search form. It arrives namespaced as
// q[Name], q[Category], q[CreatedFrom], q[CreatedTo], q[CurrentFolderOnly].
type SearchParams struct {
	Name              string `json:"name,omitempty"`
	Category          string `json:"category,omitempty"`
	CreatedFrom       string `json:"created_from,omitempty"`
	CreatedTo         string `json:"created_to,omitempty"`
	CurrentFolderOnly bool   `json:"current_folder_only,omitempty"`
}

// ParseSearchParams reads the q[...] fields. AppCategory is accepted as an
// alias of Category.
func ParseSearchParams(values url.Values) SearchParams {
	get := func(field string) string {
		return strings.TrimSpace(values.Get("q[" + field + "]"))
	}

	p := SearchParams{
		Name:        get("Name"),
		Category:    get("Category"),
		CreatedFrom: get("CreatedFrom"),
		CreatedTo:   get("CreatedTo"),
	}
	if p.Category == "" {
		p.Category = get("AppCategory")
	}
	switch strings.ToLower(get("CurrentFolderOnly")) {
	case "", "0", "false", "off", "no":
	default:
		p.CurrentFolderOnly = true
	}
	return p
}

// IsEmpty reports whether no search field carries a value.
func (p SearchParams) IsEmpty() bool {
	return p == SearchParams{}
}

// Values encodes p back into q[...] form values, omitting blank fields.
func (p SearchParams) Values() url.Values {
	v := url.Values{}
	set := func(field, value string) {
		if value != "" {
			v.Set("q["+field+"]", value)
		}
	}
	set("Name", p.Name)
	set("Category", p.Category)
	set("CreatedFrom", p.CreatedFrom)
	set("CreatedTo", p.CreatedTo)
	if p.CurrentFolderOnly {
		v.Set("q[CurrentFolderOnly]", "1")
	}
	return v
}
