package search

import (
	"fmt"
	"net/http"
)

var statusMessages = map[int]string{
	http.StatusBadRequest:            "the search request was rejected, check the game name",
	http.StatusUnauthorized:          "the search API requires authorization",
	http.StatusForbidden:             "access to the search API was denied",
	http.StatusNotFound:              "the search endpoint was not found, check the API address",
	http.StatusMethodNotAllowed:      "the search API does not accept this request method",
	http.StatusRequestTimeout:        "the search API timed out waiting for the request",
	http.StatusRequestEntityTooLarge: "the search request is too large",
	http.StatusTooManyRequests:       "too many searches, please wait a moment and try again",
	http.StatusInternalServerError:   "the search API hit an internal error",
	http.StatusBadGateway:            "the search API gateway received a bad response",
	http.StatusServiceUnavailable:    "the search API is temporarily unavailable",
	http.StatusGatewayTimeout:        "the search API gateway timed out",
}

// StatusMessage returns the human readable text for an HTTP status code.
func StatusMessage(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return fmt.Sprintf("%s (HTTP %d)", msg, status)
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("search API returned %d %s", status, text)
	}
	return fmt.Sprintf("search API returned HTTP %d", status)
}
