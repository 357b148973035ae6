package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ParseCursorPagination safely parses and validates cursor and limit query
// parameters. The cursor is the id of the last item of the previous page;
// listings are keyset-paginated on descending ids. The limit defaults to 50
// and cannot exceed 100.
func ParseCursorPagination(c *gin.Context) (cursor *uuid.UUID, limit int, err error) {
	if cursorStr := c.Query("cursor"); cursorStr != "" {
		parsed, err := uuid.Parse(cursorStr)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid cursor parameter: must be a valid id")
		}
		cursor = &parsed
	}

	limitStr := c.DefaultQuery("limit", "50")
	limit, err = strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > 100 {
		return nil, 0, fmt.Errorf("invalid limit parameter: must be between 1 and 100")
	}

	return cursor, limit, nil
}
