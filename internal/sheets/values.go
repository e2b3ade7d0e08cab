package sheets

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// toStrings flattens the API's loosely typed cells into strings.
func toStrings(values [][]interface{}) [][]string {
	if len(values) == 0 {
		return nil
	}
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j := range row {
			rows[i][j] = extractStringField(row, j)
		}
	}
	return rows
}

func toValues(rows [][]string) [][]interface{} {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	return values
}

// extractStringField safely extracts a string field from a row at the given index
func extractStringField(row []interface{}, index int) string {
	if len(row) > index && row[index] != nil {
		return fmt.Sprintf("%v", row[index])
	}
	return ""
}

// isTransient reports whether a failed read may succeed if repeated:
// rate limiting and server errors do, auth and bad-range errors don't.
func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return true
}
