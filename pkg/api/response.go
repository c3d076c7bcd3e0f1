package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	ItemsPerPage int  `json:"itemsPerPage"`
	TotalItems   int  `json:"totalItems"`
	TotalPages   int  `json:"totalPages"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

type PagedResponse struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func newPagination(page db.Page, total int) Pagination {
	totalPages := 0
	if page.Size > 0 {
		totalPages = (total + page.Size - 1) / page.Size
	}
	return Pagination{
		CurrentPage:  page.Number,
		ItemsPerPage: page.Size,
		TotalItems:   total,
		TotalPages:   totalPages,
		HasNextPage:  page.Number < totalPages,
		HasPrevPage:  page.Number > 1,
	}
}

// pageParams reads page and limit from the query string. Missing or malformed values use defaults.
func pageParams(c echo.Context) db.Page {
	number, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("limit"))
	return db.NewPage(number, size)
}

func respondOK(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func respondCreated(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

func respondPaged[T any](c echo.Context, items []T, page db.Page, total int) error {
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, PagedResponse{Success: true, Data: items, Pagination: newPagination(page, total)})
}

// bindAndValidate decodes the request body into req and validates it
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").WithInternal(err)
	}
	return c.Validate(req)
}
