package model

// PageInfo is the pagination metadata of a list response.
// Next and Prev are empty when the API sends null.
type PageInfo struct {
	Count int    `json:"count"`
	Pages int    `json:"pages"`
	Next  string `json:"next"`
	Prev  string `json:"prev"`
}

// Page is one decoded list response.
type Page struct {
	Info    *PageInfo   `json:"info,omitempty"`
	Results []Character `json:"results,omitempty"`
}

// NextURL returns the cursor for the following page, or "" on the last page.
func (p *Page) NextURL() string {
	if p == nil || p.Info == nil {
		return ""
	}
	return p.Info.Next
}

// Characters returns the page results. Absent results yield an empty slice.
func (p *Page) Characters() []Character {
	if p == nil || p.Results == nil {
		return []Character{}
	}
	return p.Results
}
