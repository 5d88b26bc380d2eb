package pagination

// Pagination is the page/limit pair accepted by list endpoints.
type Pagination struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

// PageInfo describes one page of an offset-paginated result.
type PageInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Normalize clamps page to >= 1 and limit to [1, maxLimit], using defaultLimit when unset.
func (p Pagination) Normalize(defaultLimit, maxLimit int) Pagination {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultLimit
	case p.Limit > maxLimit:
		p.Limit = maxLimit
	}
	return p
}

// Offset is the number of rows to skip. Call it on a normalized value.
func (p Pagination) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

func BuildPageInfo(p Pagination, total int64) PageInfo {
	info := PageInfo{Total: total, Page: p.Page, Limit: p.Limit}
	if p.Limit > 0 {
		info.TotalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return info
}
