package httpdto

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// PagedResponse wraps a list payload with its total for offset paging.
type PagedResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}
