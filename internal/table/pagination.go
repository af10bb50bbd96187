package table

// PageRange returns the page numbers to show in the pager.
// Ellipsis positions are returned as -1.
func PageRange(currentPage, totalPages int) []int {
	if totalPages <= 7 {
		pages := make([]int, totalPages)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	pages := []int{1}

	start, end := currentPage-1, currentPage+1
	if start <= 2 {
		start = 2
	}
	if end >= totalPages {
		end = totalPages - 1
	}

	if start > 2 {
		pages = append(pages, -1)
	}
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	if end < totalPages-1 {
		pages = append(pages, -1)
	}
	return append(pages, totalPages)
}

// bounds returns the 1-based index of the first and last row on the page.
// Both are 0 when the page is empty.
func bounds(currentPage, perPage, rows int) (from, to int) {
	if rows == 0 {
		return 0, 0
	}
	if currentPage < 1 {
		currentPage = 1
	}
	if perPage < rows {
		perPage = rows
	}
	from = (currentPage-1)*perPage + 1
	return from, from + rows - 1
}
